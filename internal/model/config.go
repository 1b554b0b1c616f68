package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig marks configuration problems that must abort a run before
// any document is processed
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the process-wide configuration, built once at startup and passed
// to every component that performs external calls.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Match       MatchConfig       `yaml:"match" mapstructure:"match"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Verify      VerifyConfig      `yaml:"verify" mapstructure:"verify"`
	Download    DownloadConfig    `yaml:"download" mapstructure:"download"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Feedback    FeedbackConfig    `yaml:"feedback" mapstructure:"feedback"`
}

// LLMConfig selects the language model provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // zhipu, openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the paper-search index
type SearchConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	MaxResults        int           `yaml:"max_results" mapstructure:"max_results"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// MatchConfig configures title matching against search results
type MatchConfig struct {
	// Threshold a candidate's similarity must strictly exceed to be accepted
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// ExtractConfig tunes citation marker extraction
type ExtractConfig struct {
	FallbackThreshold int  `yaml:"fallback_threshold" mapstructure:"fallback_threshold"` // Run the model pass when the regex pass finds this many markers or fewer
	ChunkSize         int  `yaml:"chunk_size" mapstructure:"chunk_size"`                 // Runes per model chunk
	ContextWindow     int  `yaml:"context_window" mapstructure:"context_window"`         // Runes on each side of a marker
	ModelFallback     bool `yaml:"model_fallback" mapstructure:"model_fallback"`
}

// VerifyConfig configures citation verification
type VerifyConfig struct {
	Mode              VerifyMode    `yaml:"mode" mapstructure:"mode"`
	ReferenceDir      string        `yaml:"reference_dir" mapstructure:"reference_dir"`
	MetadataThreshold float64       `yaml:"metadata_threshold" mapstructure:"metadata_threshold"`
	MetadataResults   int           `yaml:"metadata_results" mapstructure:"metadata_results"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxEvidenceRunes  int           `yaml:"max_evidence_runes" mapstructure:"max_evidence_runes"`
}

// DownloadConfig configures reference PDF downloads
type DownloadConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig configures search result caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds per-item fan-out
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// HTTPConfig holds proxy settings shared by all outbound clients
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls reporting
type OutputConfig struct {
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
	MetricsFile string `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// FeedbackConfig locates the feedback log
type FeedbackConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "zhipu",
			Model:     "glm-4-flash",
			Timeout:   60,
			MaxTokens: 2048,
		},
		Search: SearchConfig{
			BaseURL:           "http://export.arxiv.org/api/query",
			MaxResults:        5,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 1.0 / 3.0,
			BurstSize:         1,
			UserAgent:         "citecheck/0.1 (+https://github.com/ppiankov/citecheck)",
		},
		Match: MatchConfig{
			Threshold: 0.8,
		},
		Extract: ExtractConfig{
			FallbackThreshold: 10,
			ChunkSize:         8000,
			ContextWindow:     100,
			ModelFallback:     true,
		},
		Verify: VerifyConfig{
			Mode:              ModeHeavyweight,
			ReferenceDir:      "./references",
			MetadataThreshold: 0.6,
			MetadataResults:   3,
			Timeout:           2 * time.Minute,
			MaxEvidenceRunes:  60000,
		},
		Download: DownloadConfig{
			Enabled:     true,
			MaxAttempts: 3,
			RetryDelay:  2 * time.Second,
			Timeout:     2 * time.Minute,
			MaxBytes:    50 << 20,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".citecheck-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Feedback: FeedbackConfig{
			Path: "feedback.log",
		},
	}
}

// Validate reports configuration errors. All of them wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, a ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, a...)...))
	}

	switch c.LLM.Provider {
	case "zhipu", "glm", "openai", "anthropic", "claude":
		if c.LLM.APIKey == "" {
			add("llm.api_key is required for provider %q", c.LLM.Provider)
		}
	case "ollama":
	default:
		add("unknown llm.provider %q (supported: zhipu, openai, anthropic, ollama)", c.LLM.Provider)
	}
	if c.Match.Threshold < 0 || c.Match.Threshold >= 1 {
		add("match.threshold must be in [0, 1), got %v", c.Match.Threshold)
	}
	if c.Verify.MetadataThreshold < 0 || c.Verify.MetadataThreshold >= 1 {
		add("verify.metadata_threshold must be in [0, 1), got %v", c.Verify.MetadataThreshold)
	}
	if c.Search.MaxResults <= 0 {
		add("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.BaseURL == "" {
		add("search.base_url is required")
	}
	if c.Extract.ChunkSize <= 0 {
		add("extract.chunk_size must be positive, got %d", c.Extract.ChunkSize)
	}
	switch c.Verify.Mode {
	case ModeHeavyweight:
		if c.Verify.ReferenceDir == "" {
			add("verify.reference_dir is required in heavyweight mode")
		}
	case ModeLightweight:
	default:
		add("unknown verify.mode %q (supported: heavyweight, lightweight)", c.Verify.Mode)
	}
	if c.Download.MaxAttempts <= 0 {
		add("download.max_attempts must be positive, got %d", c.Download.MaxAttempts)
	}

	return errors.Join(errs...)
}
