package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/model"
	"go.uber.org/zap"
)

// minTitleRunes is the length a title must exceed to be kept
const minTitleRunes = 10

var (
	referenceHeading = regexp.MustCompile(`(?m)^[ \t]*(?:[0-9IVX]+\.?[ \t]+)?(?:References|REFERENCES|Bibliography|BIBLIOGRAPHY|参考文献)[ \t]*:?[ \t]*$`)

	enumPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`^\[\d+\]\s*`),
		regexp.MustCompile(`^\d+\.\s*`),
		regexp.MustCompile(`^\(\d+\)\s*`),
	}
)

// ReferenceExtractor recovers the reference-list titles of a document with a
// language model
type ReferenceExtractor struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewReferenceExtractor creates a reference title extractor
func NewReferenceExtractor(completer llm.Completer, logger *zap.Logger) *ReferenceExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceExtractor{completer: completer, logger: logger}
}

// Extract returns the reference titles with 1-based indices
func (e *ReferenceExtractor) Extract(ctx context.Context, text string) ([]model.ReferenceTitle, error) {
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("document text is empty, no reference titles extracted")
		return nil, nil
	}

	section := ReferenceSection(text)
	reply, err := e.completer.Complete(ctx, llm.ReferencePrompt(section))
	if err != nil {
		return nil, fmt.Errorf("extract reference titles: %w", err)
	}

	titles := CleanTitles(reply)
	e.logger.Info("reference titles extracted",
		zap.Int("titles", len(titles)),
		zap.Int("section_runes", utf8.RuneCountInString(section)),
	)
	return model.NewReferenceTitles(titles), nil
}

// ReferenceSection returns text from the last reference-list heading on, or
// the whole text when there is no heading
func ReferenceSection(text string) string {
	locs := referenceHeading.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	return text[locs[len(locs)-1][0]:]
}

// CleanTitles splits a model reply into titles, dropping enumeration
// prefixes and lines too short to be a title
func CleanTitles(reply string) []string {
	var titles []string
	for _, line := range strings.Split(reply, "\n") {
		title := strings.TrimSpace(line)
		for _, prefix := range enumPrefixes {
			title = prefix.ReplaceAllString(title, "")
		}
		title = strings.TrimSpace(title)
		if utf8.RuneCountInString(title) <= minTitleRunes || allDigits(title) {
			continue
		}
		titles = append(titles, title)
	}
	return titles
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
