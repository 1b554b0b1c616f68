package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.AddMarkers("regex", 3)
	m.AddMarkers("model", 0)
	m.IncSearch("found")
	m.IncSearch("found")
	m.IncVerification("verified", "consistent")
	m.IncVerification("skipped", "")
	m.ObserveLLM("zhipu", 100*time.Millisecond, nil)
	m.ObserveLLM("zhipu", time.Second, errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.MarkersExtracted.WithLabelValues("regex")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MarkersExtracted.WithLabelValues("model")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("skipped", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("zhipu", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("zhipu", "ok")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddMarkers("regex", 1)
		m.IncUnparsed()
		m.IncSearch("error")
		m.IncVerification("error", "")
		m.IncDownload("failed")
		m.ObserveLLM("openai", time.Second, nil)
	})
}

func TestMetrics_WriteFile(t *testing.T) {
	m := New()
	m.IncDownload("downloaded")

	path := filepath.Join(t.TempDir(), "citecheck.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `citecheck_downloads_total{status="downloaded"} 1`))
}
