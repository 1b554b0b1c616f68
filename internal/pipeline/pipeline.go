package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/document"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/reconcile"
	"github.com/ppiankov/citecheck/internal/resolve"
	"github.com/ppiankov/citecheck/internal/search"
	"github.com/ppiankov/citecheck/internal/store"
	"github.com/ppiankov/citecheck/internal/verify"
	"go.uber.org/zap"
)

// Deps are the external collaborators of a pipeline. Loader defaults to the
// document registry and ReferenceLoader to PDF; Metrics and Logger may be nil.
type Deps struct {
	Completer       llm.Completer
	Searcher        search.Searcher
	Loader          document.Loader
	ReferenceLoader document.Loader // Reads stored reference files
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Pipeline orchestrates the complete check of one document
type Pipeline struct {
	loader     document.Loader
	titles     *extract.ReferenceExtractor
	markers    *extract.MarkerExtractor
	resolver   *resolve.Resolver
	downloader *Downloader // nil when downloads are disabled or not needed
	verifier   *verify.Verifier
	store      *store.Store
	config     *model.Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewSearcher builds the search stack: arXiv client behind a circuit breaker,
// with results cached when caching is enabled
func NewSearcher(cfg *model.Config, logger *zap.Logger) search.Searcher {
	var s search.Searcher = search.NewArxivClient(cfg.Search, cfg.HTTP, logger)
	s = search.NewBreakerSearcher(s, search.DefaultBreakerSettings(), logger)
	if cfg.Cache.Enabled {
		s = search.NewCachedSearcher(s, cache.New(cfg.Cache), 0, logger)
	}
	return s
}

// NewCompleter builds the configured language model caller with metrics
func NewCompleter(cfg *model.Config, m *metrics.Metrics, logger *zap.Logger) (llm.Completer, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}
	return llm.NewInstrumented(provider, m, logger), nil
}

// New creates a pipeline with the given configuration
func New(cfg *model.Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := deps.Loader
	if loader == nil {
		loader = document.NewRegistry()
	}

	refStore := store.New(cfg.Verify.ReferenceDir, deps.ReferenceLoader)

	var evidence verify.Evidence
	switch cfg.Verify.Mode {
	case model.ModeLightweight:
		evidence = verify.NewLightEvidence(deps.Searcher, cfg.Verify.MetadataThreshold, cfg.Verify.MetadataResults, logger)
	default:
		evidence = verify.NewHeavyEvidence(refStore, cfg.Verify.MaxEvidenceRunes)
	}

	markers := extract.NewMarkerExtractor(deps.Completer, extract.MarkerOptionsFromConfig(cfg.Extract), logger).
		WithMetrics(deps.Metrics)
	resolver := resolve.New(deps.Searcher, resolve.OptionsFromConfig(cfg), logger).
		WithMetrics(deps.Metrics)
	verifier := verify.New(deps.Completer, evidence, verify.Options{
		Timeout: cfg.Verify.Timeout,
		Workers: cfg.Concurrency.Workers,
	}, logger).WithMetrics(deps.Metrics)

	p := &Pipeline{
		loader:   loader,
		titles:   extract.NewReferenceExtractor(deps.Completer, logger),
		markers:  markers,
		resolver: resolver,
		verifier: verifier,
		store:    refStore,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.Download.Enabled {
		p.downloader = NewDownloader(refStore, cfg, logger).WithMetrics(deps.Metrics)
	}
	return p
}

// Downloader returns the reference downloader, nil when downloads are off
func (p *Pipeline) Downloader() *Downloader {
	return p.downloader
}

// Check runs every stage on one document. Only an unreadable document is an
// error; every later failure degrades into the report.
func (p *Pipeline) Check(ctx context.Context, path string) (*model.Report, error) {
	report, text, err := p.prepare(ctx, path)
	if err != nil {
		return nil, err
	}

	// Markers drive verification; raw occurrences drive citation counts
	markers := p.markers.Extract(ctx, text)
	occurrences := extract.FindOccurrences(text, p.config.Extract.ContextWindow)
	for _, m := range markers {
		if m.Source == model.MarkerSourceModel {
			occurrences = append(occurrences, m)
		}
	}
	report.Markers = markers
	report.Stats = reconcile.Analyze(report.Titles, occurrences)
	if n := len(report.Stats.OutOfRange); n > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d cited number(s) have no reference entry: %v", n, report.Stats.OutOfRange))
	}

	report.Matches = p.resolver.ResolveAll(ctx, report.Titles)
	if p.downloader != nil && p.config.Verify.Mode == model.ModeHeavyweight {
		report.Downloads = p.downloader.DownloadAll(ctx, report.Matches)
	}

	report.Outcomes = p.verifier.VerifyAll(ctx, markers, report.Titles)
	report.Summary = verify.Summarize(report.Outcomes)
	report.FinishedAt = p.now().UTC()

	p.logger.Info("document checked",
		zap.String("document", path),
		zap.Int("titles", len(report.Titles)),
		zap.Int("markers", len(markers)),
		zap.Int("found", report.FoundCount()),
		zap.Int("verified", report.Summary.Verified),
	)
	return report, nil
}

// Download resolves the reference titles of a document and stores their
// PDFs, without extracting markers or verifying
func (p *Pipeline) Download(ctx context.Context, path string) (*model.Report, error) {
	report, _, err := p.prepare(ctx, path)
	if err != nil {
		return nil, err
	}

	report.Matches = p.resolver.ResolveAll(ctx, report.Titles)
	downloader := p.downloader
	if downloader == nil {
		downloader = NewDownloader(p.store, p.config, p.logger)
	}
	report.Downloads = downloader.DownloadAll(ctx, report.Matches)
	report.FinishedAt = p.now().UTC()
	return report, nil
}

// prepare loads the document and extracts its reference titles
func (p *Pipeline) prepare(ctx context.Context, path string) (*model.Report, string, error) {
	report := &model.Report{
		RunID:     uuid.NewString(),
		Document:  path,
		Mode:      p.config.Verify.Mode,
		StartedAt: p.now().UTC(),
	}

	text, err := p.loader.Load(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("load document: %w", err)
	}
	report.Characters = utf8.RuneCountInString(text)
	if report.Characters == 0 {
		report.Warnings = append(report.Warnings, "document has no extractable text")
	}

	titles, err := p.titles.Extract(ctx, text)
	if err != nil {
		msg := logging.Truncate(err.Error(), 120)
		p.logger.Warn("reference title extraction failed", zap.String("error", msg))
		report.Warnings = append(report.Warnings, "reference titles unavailable: "+msg)
	}
	report.Titles = titles
	if report.Titles == nil {
		report.Titles = []model.ReferenceTitle{}
	}
	return report, text, nil
}
