package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runFlags are the configuration overrides shared by document commands.
// Only flags set on the command line override the loaded configuration.
type runFlags struct {
	mode         string
	referenceDir string
	threshold    float64
	llmProvider  string
	llmModel     string
	workers      int
	noCache      bool
	noDownload   bool
	httpProxy    string
	httpsProxy   string
	timeout      time.Duration
}

var flags runFlags

func addRunFlags(cmd *cobra.Command, defaultTimeout time.Duration) {
	defaults := model.DefaultConfig()

	// Verification flags
	cmd.Flags().StringVar(&flags.mode, "mode", string(defaults.Verify.Mode), "verification mode (heavyweight, lightweight)")
	cmd.Flags().StringVar(&flags.referenceDir, "reference-dir", defaults.Verify.ReferenceDir, "directory holding reference PDFs named {index}.pdf")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", defaults.Match.Threshold, "title similarity a search result must exceed to match")
	cmd.Flags().IntVar(&flags.workers, "workers", defaults.Concurrency.Workers, "concurrent searches and verifications per document")
	cmd.Flags().BoolVar(&flags.noDownload, "no-download", false, "do not download reference PDFs")

	// LLM flags
	cmd.Flags().StringVar(&flags.llmProvider, "llm-provider", defaults.LLM.Provider, "LLM provider (zhipu, openai, anthropic, ollama)")
	cmd.Flags().StringVar(&flags.llmModel, "llm-model", defaults.LLM.Model, "LLM model name")

	// HTTP flags
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable search cache (force fresh queries)")
	cmd.Flags().StringVar(&flags.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&flags.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", defaultTimeout, "overall command timeout")
}

// configFor loads the configuration and applies the flags set on cmd
func configFor(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	applyRunFlags(cmd, cfg)
	return cfg, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("mode") {
		cfg.Verify.Mode = model.VerifyMode(flags.mode)
	}
	if changed("reference-dir") {
		cfg.Verify.ReferenceDir = flags.referenceDir
	}
	if changed("threshold") {
		cfg.Match.Threshold = flags.threshold
	}
	if changed("workers") {
		cfg.Concurrency.Workers = flags.workers
	}
	if changed("no-download") {
		cfg.Download.Enabled = !flags.noDownload
	}
	if changed("llm-provider") {
		providerChanged := cfg.LLM.Provider != flags.llmProvider
		cfg.LLM.Provider = flags.llmProvider
		if providerChanged {
			// A key configured for another provider is never sent to this one
			cfg.LLM.APIKey = ""
			cfg.LLM.BaseURL = ""
			if !changed("llm-model") {
				cfg.LLM.Model = ""
			}
		}
	}
	if changed("llm-model") {
		cfg.LLM.Model = flags.llmModel
	}
	if changed("no-cache") {
		cfg.Cache.Enabled = !flags.noCache
	}
	if changed("http-proxy") {
		cfg.HTTP.HTTPProxy = flags.httpProxy
	}
	if changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = flags.httpsProxy
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if metricsFile != "" {
		cfg.Output.MetricsFile = metricsFile
	}
	resolveProviderEnv(cfg)
}

// printBanner writes the boxed heading the commands print on stderr
func printBanner(w io.Writer, title string) {
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
}
