package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters of one citecheck process. A private registry
// keeps repeated construction in tests from colliding with the global one.
type Metrics struct {
	Registry *prometheus.Registry

	MarkersExtracted *prometheus.CounterVec   // by pass: regex, model
	UnparsedLines    prometheus.Counter       // model lines no parser accepted
	SearchRequests   *prometheus.CounterVec   // by result: found, not_found, error
	Verifications    *prometheus.CounterVec   // by status and verdict
	Downloads        *prometheus.CounterVec   // by status
	LLMCalls         *prometheus.CounterVec   // by provider and outcome
	LLMLatency       *prometheus.HistogramVec // by provider
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MarkersExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citecheck_markers_extracted_total",
				Help: "Citation markers kept after deduplication, by extraction pass",
			},
			[]string{"pass"},
		),
		UnparsedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citecheck_model_lines_unparsed_total",
			Help: "Model reply lines that no marker parser accepted",
		}),
		SearchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citecheck_title_resolutions_total",
				Help: "Reference title resolutions against the search index, by result",
			},
			[]string{"result"},
		),
		Verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citecheck_verifications_total",
				Help: "Citation marker verifications, by status and verdict",
			},
			[]string{"status", "verdict"},
		),
		Downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citecheck_downloads_total",
				Help: "Reference document downloads, by status",
			},
			[]string{"status"},
		),
		LLMCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citecheck_llm_calls_total",
				Help: "Language model calls, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		LLMLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "citecheck_llm_call_duration_seconds",
				Help:    "Language model call latency",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"provider"},
		),
	}

	m.Registry.MustRegister(
		m.MarkersExtracted,
		m.UnparsedLines,
		m.SearchRequests,
		m.Verifications,
		m.Downloads,
		m.LLMCalls,
		m.LLMLatency,
	)
	return m
}

// ObserveLLM records one model call
func (m *Metrics) ObserveLLM(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(provider, outcome).Inc()
	m.LLMLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// AddMarkers records markers kept from one extraction pass
func (m *Metrics) AddMarkers(pass string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.MarkersExtracted.WithLabelValues(pass).Add(float64(n))
}

// IncUnparsed records a model line that could not be parsed
func (m *Metrics) IncUnparsed() {
	if m == nil {
		return
	}
	m.UnparsedLines.Inc()
}

// IncSearch records a resolution result: found, not_found or error
func (m *Metrics) IncSearch(result string) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(result).Inc()
}

// IncVerification records a verification outcome
func (m *Metrics) IncVerification(status, verdict string) {
	if m == nil {
		return
	}
	if verdict == "" {
		verdict = "none"
	}
	m.Verifications.WithLabelValues(status, verdict).Inc()
}

// IncDownload records a download outcome
func (m *Metrics) IncDownload(status string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(status).Inc()
}

// WriteFile writes the registry in the Prometheus text format
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
