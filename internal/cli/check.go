package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outJSON string
	outMD   string
	strict  bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <document>",
	Short: "Check the citations of a single document",
	Long: `Check reads a PDF, Word, HTML or text document and:
- Extracts the reference list titles and the in-text citation markers
- Reports references that are never cited and numbers cited repeatedly
- Looks up every reference title on arXiv
- Asks the language model whether each citing sentence fits the cited paper

Heavyweight mode reads the cited papers from --reference-dir ({index}.pdf),
downloading matched papers first unless --no-download is set. Lightweight
mode uses arXiv metadata only.

Example:
  citecheck check paper.pdf
  citecheck check paper.docx --mode lightweight --md report.md
  citecheck check paper.pdf --json report.json --llm-provider openai --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: print JSON to stdout)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	checkCmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any citation is flagged")

	addRunFlags(checkCmd, 30*time.Minute)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := configFor(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", path)
		fmt.Fprintf(os.Stderr, "Mode: %s\n", cfg.Verify.Mode)
		fmt.Fprintf(os.Stderr, "LLM: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintln(os.Stderr)
	}

	report, err := rt.pipeline.Check(ctx, path)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	renderer := pipeline.NewRenderer()
	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	} else if err := renderer.WriteJSON(os.Stdout, report); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	renderer.RenderSummary(os.Stderr, report)

	if strict {
		if n := len(pipeline.Problems(report.Outcomes)); n > 0 {
			return fmt.Errorf("%d citation(s) flagged", n)
		}
	}
	return nil
}
