package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/store"
	"github.com/ppiankov/citecheck/internal/util"
	"github.com/ppiankov/citecheck/internal/worker"
	"go.uber.org/zap"
)

// Downloader fetches the PDFs of matched references into the evidence store
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	store      *store.Store
	retry      worker.RetryPolicy
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewDownloader creates a downloader writing into s
func NewDownloader(s *store.Store, cfg *model.Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := util.NewHTTPClient(cfg.HTTP, cfg.Download.Timeout)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after 5 redirects")
		}
		return nil
	}

	d := &Downloader{
		httpClient: client,
		userAgent:  cfg.Search.UserAgent,
		maxBytes:   cfg.Download.MaxBytes,
		store:      s,
		retry: worker.RetryPolicy{
			MaxAttempts: cfg.Download.MaxAttempts,
			Delay:       cfg.Download.RetryDelay,
		},
		limiter: worker.NewLimiter(cfg.Search.RequestsPerSecond, cfg.Search.BurstSize),
		logger:  logger,
	}
	if cfg.Download.RespectRobots {
		d.robots = util.NewRobotsChecker(cfg.Search.UserAgent, client)
	}
	return d
}

// WithMetrics attaches download counters
func (d *Downloader) WithMetrics(m *metrics.Metrics) *Downloader {
	d.metrics = m
	return d
}

// WithSleep replaces the wait between attempts
func (d *Downloader) WithSleep(sleep func(ctx context.Context, wait time.Duration) error) *Downloader {
	d.retry.Sleep = sleep
	return d
}

// DownloadAll downloads every reference in order. Failures are recorded per
// reference and never stop the run.
func (d *Downloader) DownloadAll(ctx context.Context, matches []model.MatchResult) []model.DownloadResult {
	results := make([]model.DownloadResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, d.Download(ctx, m))
	}
	return results
}

// Download stores the PDF of one resolved reference. A reference already in
// the store is skipped. Candidates are tried in order: when the accepted
// candidate's link fails, the next alternate with a PDF link is used.
func (d *Downloader) Download(ctx context.Context, m model.MatchResult) model.DownloadResult {
	res := model.DownloadResult{ReferenceIndex: m.ReferenceIndex, Title: m.QueryTitle}
	defer func() {
		d.metrics.IncDownload(string(res.Status))
	}()

	if d.store.Exists(m.ReferenceIndex) {
		res.Status = model.DownloadSkipped
		res.Path = d.store.Path(m.ReferenceIndex)
		return res
	}

	fail := func(reason string) model.DownloadResult {
		res.Status = model.DownloadFailed
		res.Error = reason
		d.logger.Warn("reference download failed",
			zap.Int("reference", m.ReferenceIndex),
			zap.String("title", logging.Truncate(m.QueryTitle, 60)),
			zap.String("error", reason),
		)
		return res
	}

	if !m.Found {
		reason := "no match in search index"
		if m.Error != "" {
			reason += ": " + m.Error
		}
		return fail(reason)
	}

	var urls []string
	for _, c := range m.DownloadCandidates() {
		if c.Paper.PDFURL != "" {
			urls = append(urls, c.Paper.PDFURL)
		}
	}
	if len(urls) == 0 {
		return fail("matched record has no PDF link")
	}

	var lastErr error
	for i, pdfURL := range urls {
		if i > 0 {
			if ctx.Err() != nil {
				break
			}
			d.logger.Info("trying next candidate",
				zap.Int("reference", m.ReferenceIndex),
				zap.Int("candidate", i+1),
				zap.Int("candidates", len(urls)),
			)
		}

		attempts, err := d.fetchCandidate(ctx, pdfURL, m.ReferenceIndex)
		res.Attempts += attempts
		if err == nil {
			res.Status = model.DownloadDownloaded
			res.SourceURL = pdfURL
			res.Path = d.store.Path(m.ReferenceIndex)
			d.logger.Debug("reference downloaded",
				zap.Int("reference", m.ReferenceIndex),
				zap.Int("candidate", i+1),
				zap.Int("attempts", res.Attempts),
			)
			return res
		}
		lastErr = err
	}

	reason := logging.Truncate(lastErr.Error(), 120)
	if len(urls) > 1 {
		reason = fmt.Sprintf("all %d candidates failed, last: %s", len(urls), reason)
	}
	return fail(reason)
}

// fetchCandidate downloads one candidate link with retries and returns the
// attempts made
func (d *Downloader) fetchCandidate(ctx context.Context, pdfURL string, index int) (int, error) {
	if d.robots != nil {
		allowed, _, err := d.robots.CanFetch(ctx, pdfURL)
		if err != nil {
			return 0, err
		}
		if !allowed {
			return 0, errors.New("disallowed by robots.txt")
		}
	}

	return d.retry.Do(ctx, func(attempt int) error {
		err := d.fetch(ctx, pdfURL, index)
		if err != nil && !worker.IsPermanent(err) {
			d.logger.Info("download attempt failed",
				zap.Int("reference", index),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
}

// fetch makes one download attempt. Client errors and oversized bodies are
// permanent; network errors, 429 and 5xx are retried.
func (d *Downloader) fetch(ctx context.Context, rawURL string, index int) error {
	if err := d.limiter.Wait(ctx, rawURL); err != nil {
		return worker.Permanent(fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return worker.Permanent(fmt.Errorf("create request: %w", err))
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return worker.Permanent(err)
	}

	if _, err := d.store.Save(index, resp.Body, d.maxBytes); err != nil {
		if errors.Is(err, store.ErrTooLarge) {
			return worker.Permanent(err)
		}
		return err
	}
	return nil
}
