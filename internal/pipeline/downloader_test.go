package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func found(index int, pdfURL string) model.MatchResult {
	return model.MatchResult{
		ReferenceIndex: index,
		QueryTitle:     "A sufficiently long title",
		Found:          true,
		Checked:        1,
		Candidate: &model.MatchCandidate{
			ReferenceIndex: index,
			CandidateTitle: "A sufficiently long title",
			Similarity:     1,
			Paper:          model.Paper{PDFURL: pdfURL},
		},
	}
}

func newTestDownloader(t *testing.T, cfg *model.Config) (*Downloader, *store.Store) {
	t.Helper()
	s := store.New(cfg.Verify.ReferenceDir, nil)
	return NewDownloader(s, cfg, nil).WithSleep(noSleep), s
}

func TestDownloader_Success(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	m := metrics.New()
	d, s := newTestDownloader(t, cfg)
	d.WithMetrics(m)

	res := d.Download(context.Background(), found(1, srv.URL+"/pdf/1706.03762"))

	assert.Equal(t, model.DownloadDownloaded, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, s.Path(1), res.Path)
	data, err := os.ReadFile(s.Path(1))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
	assert.True(t, strings.HasPrefix(userAgent, "citecheck/"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("downloaded")))
}

func TestDownloader_RetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t, testConfig(t))

	res := d.Download(context.Background(), found(2, srv.URL))

	assert.Equal(t, model.DownloadDownloaded, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDownloader_GivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d, s := newTestDownloader(t, testConfig(t))

	res := d.Download(context.Background(), found(1, srv.URL))

	assert.Equal(t, model.DownloadFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Contains(t, res.Error, "502")
	assert.False(t, s.Exists(1))
}

func TestDownloader_ClientErrorIsPermanent(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t, testConfig(t))

	res := d.Download(context.Background(), found(1, srv.URL))

	assert.Equal(t, model.DownloadFailed, res.Status)
	assert.Equal(t, "unexpected status: 404 Not Found", res.Error)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDownloader_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Download.MaxBytes = 10
	d, _ := newTestDownloader(t, cfg)

	res := d.Download(context.Background(), found(1, srv.URL))

	assert.Equal(t, model.DownloadFailed, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Error, "size limit")
}

func TestDownloader_SkipsStoredAndUnmatched(t *testing.T) {
	cfg := testConfig(t)
	d, s := newTestDownloader(t, cfg)
	_, err := s.Save(1, strings.NewReader("%PDF"), 0)
	require.NoError(t, err)

	results := d.DownloadAll(context.Background(), []model.MatchResult{
		found(1, "http://unused.invalid/a.pdf"),
		model.NotFound(model.ReferenceTitle{Index: 2, Text: "Missing title here"}, 5, ""),
		model.NotFound(model.ReferenceTitle{Index: 3, Text: "Errored title here"}, 0, "arxiv returned 503"),
		found(4, ""),
	})

	require.Len(t, results, 4)
	assert.Equal(t, model.DownloadSkipped, results[0].Status)
	assert.Equal(t, model.DownloadFailed, results[1].Status)
	assert.Equal(t, "no match in search index", results[1].Error)
	assert.Equal(t, "no match in search index: arxiv returned 503", results[2].Error)
	assert.Equal(t, "matched record has no PDF link", results[3].Error)
}

func TestDownloader_RespectsRobots(t *testing.T) {
	var pdfRequests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /pdf/\n"))
			return
		}
		pdfRequests.Add(1)
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Download.RespectRobots = true
	d, _ := newTestDownloader(t, cfg)

	res := d.Download(context.Background(), found(1, srv.URL+"/pdf/1234"))

	assert.Equal(t, model.DownloadFailed, res.Status)
	assert.Equal(t, "disallowed by robots.txt", res.Error)
	assert.Equal(t, int32(0), pdfRequests.Load())
}

func withAlternates(m model.MatchResult, pdfURLs ...string) model.MatchResult {
	for _, u := range pdfURLs {
		m.Alternates = append(m.Alternates, model.MatchCandidate{
			ReferenceIndex: m.ReferenceIndex,
			CandidateTitle: m.QueryTitle,
			Similarity:     0.9,
			Paper:          model.Paper{PDFURL: u},
		})
	}
	return m
}

func TestDownloader_FallsThroughToNextCandidate(t *testing.T) {
	var brokenHits, workingHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken.pdf":
			brokenHits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		case "/working.pdf":
			workingHits.Add(1)
			_, _ = w.Write([]byte("%PDF-1.5 second"))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	d, s := newTestDownloader(t, testConfig(t))
	m := withAlternates(found(1, srv.URL+"/broken.pdf"), "", srv.URL+"/working.pdf")

	res := d.Download(context.Background(), m)

	assert.Equal(t, model.DownloadDownloaded, res.Status)
	assert.Equal(t, srv.URL+"/working.pdf", res.SourceURL)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(1), brokenHits.Load())
	assert.Equal(t, int32(1), workingHits.Load())
	data, err := os.ReadFile(s.Path(1))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.5 second", string(data))
}

func TestDownloader_AllCandidatesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	d, s := newTestDownloader(t, testConfig(t))
	m := withAlternates(found(3, srv.URL+"/a.pdf"), srv.URL+"/b.pdf")

	res := d.Download(context.Background(), m)

	assert.Equal(t, model.DownloadFailed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "all 2 candidates failed, last: unexpected status: 410 Gone", res.Error)
	assert.Empty(t, res.SourceURL)
	assert.False(t, s.Exists(3))
}

func TestDownloader_AlternateUsedWhenAcceptedHasNoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t, testConfig(t))

	res := d.Download(context.Background(), withAlternates(found(5, ""), srv.URL+"/alt.pdf"))

	assert.Equal(t, model.DownloadDownloaded, res.Status)
	assert.Equal(t, srv.URL+"/alt.pdf", res.SourceURL)
}
