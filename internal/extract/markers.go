package extract

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"go.uber.org/zap"
)

// markerPattern matches [n] and [n, n, ...] with any spacing inside the brackets
var markerPattern = regexp.MustCompile(`\[\s*(\d+(?:\s*,\s*\d+)*)\s*\]`)

// sentenceBreak splits a context window into sentences
var sentenceBreak = regexp.MustCompile(`[.!?]\s+`)

// MarkerOptions tunes citation marker extraction
type MarkerOptions struct {
	FallbackThreshold int  // Model pass runs when the regex pass finds at most this many markers
	ChunkSize         int  // Runes per model request
	ContextWindow     int  // Runes kept on each side of a marker
	ModelFallback     bool // Disable to run the regex pass only
}

// DefaultMarkerOptions returns the standard extraction settings
func DefaultMarkerOptions() MarkerOptions {
	return MarkerOptionsFromConfig(model.DefaultConfig().Extract)
}

// MarkerOptionsFromConfig converts the extract config section
func MarkerOptionsFromConfig(cfg model.ExtractConfig) MarkerOptions {
	return MarkerOptions{
		FallbackThreshold: cfg.FallbackThreshold,
		ChunkSize:         cfg.ChunkSize,
		ContextWindow:     cfg.ContextWindow,
		ModelFallback:     cfg.ModelFallback,
	}
}

// MarkerExtractor finds citation markers in document text. A regex pass runs
// first; a model-assisted pass fills in when the regex pass finds few markers.
type MarkerExtractor struct {
	completer llm.Completer
	opts      MarkerOptions
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewMarkerExtractor creates an extractor. completer may be nil, which
// disables the model pass.
func NewMarkerExtractor(completer llm.Completer, opts MarkerOptions, logger *zap.Logger) *MarkerExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 8000
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 100
	}
	return &MarkerExtractor{
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// WithMetrics attaches extraction counters
func (e *MarkerExtractor) WithMetrics(m *metrics.Metrics) *MarkerExtractor {
	e.metrics = m
	return e
}

// Extract returns the markers of text. It never fails: a model error falls
// back to the regex markers.
func (e *MarkerExtractor) Extract(ctx context.Context, text string) []model.CitationMarker {
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("document text is empty, no citation markers extracted")
		return nil
	}

	markers := ExtractMarkers(text, e.opts.ContextWindow)
	e.metrics.AddMarkers(model.MarkerSourceRegex, len(markers))
	e.logger.Info("regex pass finished", zap.Int("markers", len(markers)))

	if len(markers) > e.opts.FallbackThreshold || !e.opts.ModelFallback || e.completer == nil {
		return markers
	}
	return e.fallback(ctx, text, markers)
}

// fallback asks the model for markers chunk by chunk. Model markers are
// merged only when every chunk succeeds; any failure returns markers as is.
func (e *MarkerExtractor) fallback(ctx context.Context, text string, markers []model.CitationMarker) []model.CitationMarker {
	cited := make(map[int]bool)
	for _, m := range markers {
		for _, n := range m.Numbers {
			cited[n] = true
		}
	}

	var found []model.CitationMarker
	chunks := chunkRunes(text, e.opts.ChunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("model pass cancelled, keeping regex markers", zap.Int("chunk", i), zap.Error(err))
			return markers
		}

		reply, err := e.completer.Complete(ctx, llm.MarkerPrompt(chunk))
		if err != nil {
			e.logger.Warn("model pass failed, keeping regex markers",
				zap.Int("chunk", i),
				zap.Int("chunks", len(chunks)),
				zap.String("error", logging.Truncate(err.Error(), 120)),
			)
			return markers
		}

		for _, m := range e.parseReply(reply) {
			if anyCited(m.Numbers, cited) {
				continue
			}
			for _, n := range m.Numbers {
				cited[n] = true
			}
			found = append(found, m)
		}
	}

	e.metrics.AddMarkers(model.MarkerSourceModel, len(found))
	markers = append(markers, found...)
	e.logger.Info("model pass finished", zap.Int("added", len(found)), zap.Int("markers", len(markers)))
	return markers
}

func (e *MarkerExtractor) parseReply(reply string) []model.CitationMarker {
	var out []model.CitationMarker
	for _, line := range strings.Split(reply, "\n") {
		m, strategy, outcome := parseLine(line)
		switch outcome {
		case lineParsed:
			if strategy != "structured" {
				e.logger.Debug("model line recovered", zap.String("strategy", strategy), zap.String("line", logging.Truncate(line, 120)))
			}
			out = append(out, m)
		case lineIgnored:
			if strings.TrimSpace(line) != "" {
				e.logger.Debug("ignoring model line without marker", zap.String("line", logging.Truncate(line, 120)))
			}
		case lineUnparseable:
			e.metrics.IncUnparsed()
			e.logger.Warn("unparseable model line", zap.String("line", logging.Truncate(line, 120)))
		}
	}
	return out
}

// ExtractMarkers runs the regex pass alone. Markers are deduplicated by their
// sorted number set, first occurrence winning, and ordered by smallest number.
func ExtractMarkers(text string, window int) []model.CitationMarker {
	seen := make(map[string]bool)
	var markers []model.CitationMarker
	for _, m := range FindOccurrences(text, window) {
		key := numberKey(m.Numbers)
		if seen[key] {
			continue
		}
		seen[key] = true
		markers = append(markers, m)
	}

	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].MinNumber() < markers[j].MinNumber()
	})
	return markers
}

// FindOccurrences returns every bracketed marker in document order, repeats
// included. Citation counts are taken from occurrences.
func FindOccurrences(text string, window int) []model.CitationMarker {
	runes := []rune(text)
	var markers []model.CitationMarker

	// Byte offsets from the regexp are converted to rune offsets incrementally
	lastByte, lastRune := 0, 0
	toRune := func(b int) int {
		lastRune += utf8.RuneCountInString(text[lastByte:b])
		lastByte = b
		return lastRune
	}

	for _, loc := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		start := toRune(loc[0])
		end := toRune(loc[1])

		m, ok := model.NewCitationMarker(parseNumbers(text[loc[2]:loc[3]]), "", model.MarkerSourceRegex)
		if !ok {
			continue
		}
		m.Context = markerContext(runes, start, end, window, text[loc[0]:loc[1]])
		markers = append(markers, m)
	}
	return markers
}

// markerContext takes window runes on each side of the match and narrows to
// the sentence holding the match text when one can be found.
func markerContext(runes []rune, start, end, window int, match string) string {
	from := start - window
	if from < 0 {
		from = 0
	}
	to := end + window
	if to > len(runes) {
		to = len(runes)
	}
	raw := strings.TrimSpace(string(runes[from:to]))

	for _, sentence := range sentenceBreak.Split(raw, -1) {
		if strings.Contains(sentence, match) {
			return strings.TrimSpace(sentence)
		}
	}
	return raw
}

func numberKey(numbers []int) string {
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func anyCited(numbers []int, cited map[int]bool) bool {
	for _, n := range numbers {
		if cited[n] {
			return true
		}
	}
	return false
}

// chunkRunes splits text into pieces of at most size runes
func chunkRunes(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
