package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceSection(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStart string
	}{
		{
			name:      "heading on its own line",
			text:      "Body text cites References inline.\nREFERENCES\n[1] Deep residual learning",
			wantStart: "REFERENCES\n[1]",
		},
		{
			name:      "last heading wins",
			text:      "References\nfirst list\nAppendix\nReferences\nsecond list",
			wantStart: "References\nsecond list",
		},
		{
			name:      "numbered heading",
			text:      "Conclusion.\n7. Bibliography\n[1] A title",
			wantStart: "7. Bibliography",
		},
		{
			name:      "chinese heading",
			text:      "正文内容\n参考文献\n[1] 深度学习",
			wantStart: "参考文献",
		},
		{
			name:      "no heading",
			text:      "Just a body with no list",
			wantStart: "Just a body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReferenceSection(tt.text)
			assert.True(t, strings.HasPrefix(got, tt.wantStart), "got %q", got)
		})
	}
}

func TestCleanTitles(t *testing.T) {
	reply := strings.Join([]string{
		"[1] Attention is all you need",
		"2. Deep residual learning for image recognition",
		"(3) BERT: Pre-training of deep bidirectional transformers",
		"Too short",
		"12345678901",
		"",
		"   Generative adversarial networks   ",
	}, "\n")

	assert.Equal(t, []string{
		"Attention is all you need",
		"Deep residual learning for image recognition",
		"BERT: Pre-training of deep bidirectional transformers",
		"Generative adversarial networks",
	}, CleanTitles(reply))
}

func TestCleanTitles_LengthBoundary(t *testing.T) {
	assert.Empty(t, CleanTitles("abcdefghij"))
	assert.Equal(t, []string{"abcdefghijk"}, CleanTitles("abcdefghijk"))
}

func TestReferenceExtractor_Extract(t *testing.T) {
	text := "Intro [1].\nReferences\n[1] Attention is all you need\n[2] Deep residual learning"
	stub := &scriptedCompleter{replies: []string{"1. Attention is all you need\n2. Deep residual learning"}}
	e := NewReferenceExtractor(stub, nil)

	titles, err := e.Extract(context.Background(), text)

	require.NoError(t, err)
	assert.Equal(t, []model.ReferenceTitle{
		{Index: 1, Text: "Attention is all you need"},
		{Index: 2, Text: "Deep residual learning"},
	}, titles)
	require.Len(t, stub.prompts, 1)
	assert.NotContains(t, stub.prompts[0], "Intro [1].")
}

func TestReferenceExtractor_Errors(t *testing.T) {
	stub := &scriptedCompleter{errs: []error{errors.New("timeout")}}
	e := NewReferenceExtractor(stub, nil)

	_, err := e.Extract(context.Background(), "References\n[1] Something long enough")
	assert.Error(t, err)

	titles, err := e.Extract(context.Background(), "")
	assert.NoError(t, err)
	assert.Empty(t, titles)
}
