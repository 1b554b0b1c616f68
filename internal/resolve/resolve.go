package resolve

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/score"
	"github.com/ppiankov/citecheck/internal/search"
	"github.com/ppiankov/citecheck/internal/worker"
	"go.uber.org/zap"
)

const notAttempted = "not attempted: run cancelled"

// Options tunes title resolution
type Options struct {
	MaxResults int           // Candidates requested per title
	Threshold  float64       // Similarity a candidate must strictly exceed
	Timeout    time.Duration // Per-title bound on the search call
	Workers    int           // Concurrent resolutions in ResolveAll
}

// OptionsFromConfig reads the search, match and concurrency sections
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		MaxResults: cfg.Search.MaxResults,
		Threshold:  cfg.Match.Threshold,
		Timeout:    cfg.Search.Timeout,
		Workers:    cfg.Concurrency.Workers,
	}
}

// Resolver maps reference titles to records of a paper index
type Resolver struct {
	searcher search.Searcher
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a resolver
func New(searcher search.Searcher, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Resolver{searcher: searcher, opts: opts, logger: logger}
}

// WithMetrics attaches resolution counters
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve searches for ref and accepts the first candidate, in index order,
// whose similarity exceeds the threshold. A later candidate with a higher
// score never replaces it; later candidates above the threshold are kept as
// download alternates. Search failures are folded into a not-found result
// carrying the error text.
func (r *Resolver) Resolve(ctx context.Context, ref model.ReferenceTitle) model.MatchResult {
	if ctx.Err() != nil {
		return model.NotFound(ref, 0, notAttempted)
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	papers, err := r.searcher.Search(ctx, ref.Text, r.opts.MaxResults)
	if err != nil {
		msg := logging.Truncate(err.Error(), 120)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "search timed out"
		}
		r.metrics.IncSearch("error")
		r.logger.Warn("title search failed",
			zap.Int("reference", ref.Index),
			zap.String("title", logging.Truncate(ref.Text, 60)),
			zap.String("error", msg),
		)
		return model.NotFound(ref, 0, msg)
	}

	var result *model.MatchResult
	for i, p := range papers {
		sim := score.Score(p.Title, ref.Text)
		if sim <= r.opts.Threshold {
			continue
		}
		candidate := model.MatchCandidate{
			ReferenceIndex: ref.Index,
			QueryTitle:     ref.Text,
			CandidateTitle: p.Title,
			Similarity:     sim,
			Paper:          p,
		}
		if result != nil {
			result.Alternates = append(result.Alternates, candidate)
			continue
		}
		r.logger.Debug("title matched",
			zap.Int("reference", ref.Index),
			zap.Int("candidate", i+1),
			zap.Float64("similarity", sim),
		)
		result = &model.MatchResult{
			ReferenceIndex: ref.Index,
			QueryTitle:     ref.Text,
			Found:          true,
			Checked:        i + 1,
			Candidate:      &candidate,
		}
	}
	if result != nil {
		r.metrics.IncSearch("found")
		return *result
	}

	r.metrics.IncSearch("not_found")
	r.logger.Info("no candidate above threshold",
		zap.Int("reference", ref.Index),
		zap.Int("candidates", len(papers)),
	)
	return model.NotFound(ref, len(papers), "")
}

type resolveJob struct {
	resolver *Resolver
	ref      model.ReferenceTitle
}

func (j *resolveJob) Execute(ctx context.Context) worker.Result {
	return &resolveResult{MatchResult: j.resolver.Resolve(ctx, j.ref)}
}

type resolveResult struct {
	model.MatchResult
}

func (r *resolveResult) GetError() error {
	if r.Error != "" {
		return errors.New(r.Error)
	}
	return nil
}

// ResolveAll resolves every title on a worker pool and returns one result per
// title ordered by reference index. Titles that never ran because ctx ended
// are reported as not found.
func (r *Resolver) ResolveAll(ctx context.Context, refs []model.ReferenceTitle) []model.MatchResult {
	if len(refs) == 0 {
		return []model.MatchResult{}
	}

	pool := worker.NewPoolWithContext(ctx, r.opts.Workers)
	pool.Start()
	for _, ref := range refs {
		pool.Submit(&resolveJob{resolver: r, ref: ref})
	}

	byIndex := make(map[int]model.MatchResult, len(refs))
	for _, res := range pool.Wait() {
		m := res.(*resolveResult).MatchResult
		byIndex[m.ReferenceIndex] = m
	}

	out := make([]model.MatchResult, 0, len(refs))
	for _, ref := range refs {
		m, ok := byIndex[ref.Index]
		if !ok {
			m = model.NotFound(ref, 0, notAttempted)
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReferenceIndex < out[j].ReferenceIndex
	})
	return out
}
