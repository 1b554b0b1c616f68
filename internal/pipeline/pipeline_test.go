package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/citecheck/internal/document"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paper = `Deep networks changed vision. Sequence models rely on attention [1]. The method builds on [2,3]. Later we revisit [2, 3] in detail.

References
1. Attention is all you need
2. Deep residual learning for image recognition
3. BERT: Pre-training of deep bidirectional transformers
4. Generative adversarial networks
5. Adam: A method for stochastic optimization
`

var paperTitles = []string{
	"Attention is all you need",
	"Deep residual learning for image recognition",
	"BERT: Pre-training of deep bidirectional transformers",
	"Generative adversarial networks",
	"Adam: A method for stochastic optimization",
}

// routedCompleter answers by prompt kind
type routedCompleter struct {
	mu        sync.Mutex
	titlesErr error
	calls     int
}

func (c *routedCompleter) Name() string { return "routed" }

func (c *routedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	switch {
	case strings.Contains(prompt, "Extract every citation marker"):
		return "", nil
	case strings.Contains(prompt, "Extract the list of paper titles"):
		if c.titlesErr != nil {
			return "", c.titlesErr
		}
		return strings.Join(paperTitles, "\n"), nil
	case strings.Contains(prompt, "attention [1]"):
		return "<是>", nil
	default:
		return "<否: 'the cited papers study other problems'>", nil
	}
}

// echoSearcher returns one paper whose title equals the query
func echoSearcher() search.Searcher {
	return search.SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]model.Paper, error) {
		return []model.Paper{{ID: "http://arxiv.org/abs/" + query, Title: query, Summary: "abstract of " + query}}, nil
	})
}

func testConfig(t *testing.T) *model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.Verify.ReferenceDir = filepath.Join(t.TempDir(), "refs")
	cfg.Cache.Enabled = false
	cfg.Download.Enabled = false
	cfg.Search.RequestsPerSecond = 1000
	cfg.Search.BurstSize = 100
	return cfg
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCheck_EndToEndLightweight(t *testing.T) {
	cfg := testConfig(t)
	cfg.Verify.Mode = model.ModeLightweight
	p := New(cfg, Deps{Completer: &routedCompleter{}, Searcher: echoSearcher()})

	report, err := p.Check(context.Background(), writeDoc(t, paper))
	require.NoError(t, err)

	require.Len(t, report.Titles, 5)
	assert.Equal(t, 1, report.Titles[0].Index)

	assert.Equal(t, []int{4, 5}, report.Stats.Missing)
	assert.Equal(t, map[int]int{2: 2, 3: 2}, report.Stats.Duplicates)
	assert.Equal(t, 3, report.Stats.TotalMarkers)

	require.Len(t, report.Markers, 2, "verification uses deduplicated markers")
	assert.Equal(t, 5, report.FoundCount())

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, model.VerdictConsistent, report.Outcomes[0].Verdict)
	assert.Equal(t, model.VerdictInconsistent, report.Outcomes[1].Verdict)
	assert.Equal(t, "the cited papers study other problems", report.Outcomes[1].Reason)
	assert.Equal(t, 2, report.Outcomes[1].EvidenceCount)

	assert.True(t, report.Summary.AccuracyDefined)
	assert.InDelta(t, 0.5, report.Summary.Accuracy, 1e-9)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, model.ModeLightweight, report.Mode)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestCheck_HeavyweightWithoutFilesSkips(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, Deps{Completer: &routedCompleter{}, Searcher: echoSearcher()})

	report, err := p.Check(context.Background(), writeDoc(t, paper))
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		assert.Equal(t, model.StatusSkipped, o.Status)
	}
	assert.False(t, report.Summary.AccuracyDefined)
	assert.Empty(t, report.Downloads)
}

func TestCheck_HeavyweightWithStoredReferences(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Verify.ReferenceDir, 0755))
	for i := 1; i <= 3; i++ {
		path := filepath.Join(cfg.Verify.ReferenceDir, fmt.Sprintf("%d.pdf", i))
		require.NoError(t, os.WriteFile(path, []byte("full text of reference"), 0644))
	}
	p := New(cfg, Deps{
		Completer:       &routedCompleter{},
		Searcher:        echoSearcher(),
		ReferenceLoader: document.TextLoader{},
	})

	report, err := p.Check(context.Background(), writeDoc(t, paper))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.Verified)
	assert.Equal(t, 1, report.Summary.Consistent)
}

func TestCheck_TitleFailureDegrades(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, Deps{Completer: &routedCompleter{titlesErr: errors.New("401 unauthorized")}, Searcher: echoSearcher()})

	report, err := p.Check(context.Background(), writeDoc(t, paper))
	require.NoError(t, err)

	assert.Empty(t, report.Titles)
	assert.NotNil(t, report.Titles)
	assert.Equal(t, []int{1, 2, 3}, report.Stats.OutOfRange)
	require.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "401 unauthorized")
	for _, o := range report.Outcomes {
		assert.Equal(t, model.StatusSkipped, o.Status)
	}
}

func TestCheck_EmptyDocument(t *testing.T) {
	cfg := testConfig(t)
	c := &routedCompleter{}
	p := New(cfg, Deps{Completer: c, Searcher: echoSearcher()})

	report, err := p.Check(context.Background(), writeDoc(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Characters)
	assert.Empty(t, report.Markers)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, c.calls)
	assert.Contains(t, report.Warnings, "document has no extractable text")
}

func TestCheck_UnreadableDocument(t *testing.T) {
	p := New(testConfig(t), Deps{Completer: &routedCompleter{}, Searcher: echoSearcher()})

	_, err := p.Check(context.Background(), filepath.Join(t.TempDir(), "paper.odt"))

	assert.ErrorIs(t, err, document.ErrUnsupported)
}
