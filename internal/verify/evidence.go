package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/score"
	"github.com/ppiankov/citecheck/internal/search"
	"github.com/ppiankov/citecheck/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrEvidenceMissing means a cited reference has no local document
	ErrEvidenceMissing = errors.New("reference document missing")

	// ErrEvidenceEmpty means gathering succeeded but produced no usable text
	ErrEvidenceEmpty = errors.New("no usable evidence")
)

// Block is the evidence for one cited reference
type Block struct {
	Number int
	Title  string
	Text   string
}

// Bundle is the evidence for one citation marker, one block per cited number
type Bundle struct {
	Mode   model.VerifyMode
	Blocks []Block
}

// Text concatenates the blocks under numbered headers
func (b Bundle) Text() string {
	var sb strings.Builder
	for i, blk := range b.Blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s\n%s", blk.Number, blk.Title, blk.Text)
	}
	return sb.String()
}

// Evidence gathers reference material for the numbers of one marker.
// Callers guarantee every number indexes titles.
type Evidence interface {
	Mode() model.VerifyMode
	Gather(ctx context.Context, numbers []int, titles []model.ReferenceTitle) (Bundle, error)
}

// HeavyEvidence reads the full text of stored reference documents
type HeavyEvidence struct {
	store    *store.Store
	maxRunes int
}

// NewHeavyEvidence reads from s, keeping at most maxRunes runes per block
// (zero keeps everything)
func NewHeavyEvidence(s *store.Store, maxRunes int) *HeavyEvidence {
	return &HeavyEvidence{store: s, maxRunes: maxRunes}
}

// Mode returns heavyweight
func (h *HeavyEvidence) Mode() model.VerifyMode { return model.ModeHeavyweight }

// Gather loads one document per number. Any missing document yields
// ErrEvidenceMissing.
func (h *HeavyEvidence) Gather(ctx context.Context, numbers []int, titles []model.ReferenceTitle) (Bundle, error) {
	bundle := Bundle{Mode: model.ModeHeavyweight}
	if missing := h.store.Missing(numbers); len(missing) > 0 {
		return bundle, fmt.Errorf("%w: %v not in %s", ErrEvidenceMissing, missing, h.store.Dir())
	}

	for _, n := range numbers {
		text, err := h.store.Text(ctx, n)
		if errors.Is(err, store.ErrMissing) {
			return bundle, fmt.Errorf("%w: %d", ErrEvidenceMissing, n)
		}
		if err != nil {
			return bundle, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		bundle.Blocks = append(bundle.Blocks, Block{
			Number: n,
			Title:  titles[n-1].Text,
			Text:   clip(text, h.maxRunes),
		})
	}

	if len(bundle.Blocks) == 0 {
		return bundle, fmt.Errorf("%w: documents for %v have no text", ErrEvidenceEmpty, numbers)
	}
	return bundle, nil
}

// LightEvidence describes cited references by their search-index metadata
type LightEvidence struct {
	searcher   search.Searcher
	threshold  float64
	maxResults int
	logger     *zap.Logger
}

// NewLightEvidence looks titles up with searcher, accepting the best
// candidate whose similarity exceeds threshold
func NewLightEvidence(searcher search.Searcher, threshold float64, maxResults int, logger *zap.Logger) *LightEvidence {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	return &LightEvidence{searcher: searcher, threshold: threshold, maxResults: maxResults, logger: logger}
}

// Mode returns lightweight
func (l *LightEvidence) Mode() model.VerifyMode { return model.ModeLightweight }

// Gather searches for each cited title. Titles without a match above the
// threshold contribute no block. A failed search is logged and skipped; it
// fails the bundle only when no other title produced metadata.
func (l *LightEvidence) Gather(ctx context.Context, numbers []int, titles []model.ReferenceTitle) (Bundle, error) {
	bundle := Bundle{Mode: model.ModeLightweight}
	var searchErr error
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return bundle, err
		}

		title := titles[n-1].Text
		papers, err := l.searcher.Search(ctx, title, l.maxResults)
		if err != nil {
			searchErr = fmt.Errorf("metadata search for reference %d: %w", n, err)
			l.logger.Warn("metadata search failed",
				zap.Int("reference", n),
				zap.String("title", logging.Truncate(title, 60)),
				zap.Error(err),
			)
			continue
		}

		best, ok := bestMatch(papers, title, l.threshold)
		if !ok {
			l.logger.Debug("no metadata match", zap.Int("reference", n), zap.Int("candidates", len(papers)))
			continue
		}
		bundle.Blocks = append(bundle.Blocks, Block{Number: n, Title: best.Title, Text: metadataText(best)})
	}

	if len(bundle.Blocks) == 0 {
		if searchErr != nil {
			return bundle, searchErr
		}
		return bundle, fmt.Errorf("%w: no metadata above %.2f for %v", ErrEvidenceEmpty, l.threshold, numbers)
	}
	return bundle, nil
}

// bestMatch picks the highest scoring paper above threshold, earliest on ties
func bestMatch(papers []model.Paper, title string, threshold float64) (model.Paper, bool) {
	var best model.Paper
	bestScore := threshold
	found := false
	for _, p := range papers {
		if s := score.Score(p.Title, title); s > bestScore {
			best, bestScore, found = p, s, true
		}
	}
	return best, found
}

func metadataText(p model.Paper) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", p.Title)
	if len(p.Authors) > 0 {
		fmt.Fprintf(&sb, "Authors: %s\n", strings.Join(p.Authors, ", "))
	}
	if p.Summary != "" {
		fmt.Fprintf(&sb, "Abstract: %s\n", strings.Join(strings.Fields(p.Summary), " "))
	}
	if !p.Published.IsZero() {
		fmt.Fprintf(&sb, "Published: %s\n", p.Published.Format("2006-01-02"))
	}
	if len(p.Categories) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(p.Categories, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func clip(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
