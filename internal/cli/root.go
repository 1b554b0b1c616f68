package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const version = "0.1.0"

var (
	cfgFile     string
	verbose     bool
	metricsFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citecheck",
	Short: "citecheck - citation consistency checks for academic documents",
	Long: `citecheck reads an academic document, extracts its reference list and
in-text citation markers such as [1] or [2, 3], and reports:

- references that are never cited and numbers cited more than once
- which reference titles can be found on arXiv
- whether the sentence around each citation is consistent with the cited paper

Verdicts come from a language model and are advisory. They flag citations
worth a second look; they do not prove a citation right or wrong.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Cancelling ctx stops in-flight checks.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of citecheck.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("citecheck v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citecheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file when the command ends")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.metrics_file", rootCmd.PersistentFlags().Lookup("metrics-file"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".citecheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv(viper.GetViper())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv reads environment variables that match CITECHECK_*, with dots in
// keys written as underscores: CITECHECK_VERIFY_MODE=lightweight
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CITECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are invisible to AutomaticEnv during Unmarshal
	for _, key := range []string{"llm.api_key", "llm.base_url", "http.http_proxy", "http.https_proxy", "http.no_proxy", "output.metrics_file"} {
		_ = v.BindEnv(key)
	}
}

// setDefaults registers every key of cfg with v so environment variables
// reach Unmarshal even when no config file mentions the key
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setTree(v, "", tree)
	return nil
}

func setTree(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for key, value := range tree {
		if nested, ok := value.(map[string]interface{}); ok {
			setTree(v, prefix+key+".", nested)
			continue
		}
		v.SetDefault(prefix+key, value)
	}
}

// loadConfig builds the run configuration from viper and the provider key
// environment. Validation is left to the command.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	resolveProviderEnv(cfg)
	return cfg, nil
}

// resolveProviderEnv fills provider settings the config left empty from the
// provider's own environment variables
func resolveProviderEnv(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		if env := llm.APIKeyEnv(cfg.LLM.Provider); env != "" {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if strings.EqualFold(cfg.LLM.Provider, "ollama") && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
}

// runtimeEnv is what every document command needs: validated config,
// logger, metrics and a ready pipeline
type runtimeEnv struct {
	config   *model.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
}

// newRuntime validates cfg and builds the pipeline collaborators once
func newRuntime(cfg *model.Config) (*runtimeEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Output.Verbose)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	completer, err := pipeline.NewCompleter(cfg, m, logger)
	if err != nil {
		return nil, err
	}
	deps := pipeline.Deps{
		Completer: completer,
		Searcher:  pipeline.NewSearcher(cfg, logger),
		Metrics:   m,
		Logger:    logger,
	}

	return &runtimeEnv{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		pipeline: pipeline.New(cfg, deps),
	}, nil
}

// close flushes the logger and writes metrics when requested
func (r *runtimeEnv) close() {
	if path := r.config.Output.MetricsFile; path != "" {
		if err := r.metrics.WriteFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "✗ write metrics: %v\n", err)
		}
	}
	_ = r.logger.Sync()
}
