package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/spf13/cobra"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <document>",
	Short: "Download the cited papers of a document",
	Long: `Download extracts the reference list of a document, looks every title up
on arXiv and saves the matched PDFs as {index}.pdf in --reference-dir.
Files already present are skipped. Failed downloads are retried.

Example:
  citecheck download paper.pdf
  citecheck download paper.pdf --reference-dir ./refs`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addRunFlags(downloadCmd, 30*time.Minute)
}

func runDownload(cmd *cobra.Command, args []string) error {
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

	fmt.Fprintf(os.Stderr, "⚙️  Resolving references of %s...\n", path)
	report, err := rt.pipeline.Download(ctx, path)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	counts := make(map[model.DownloadStatus]int)
	for _, d := range report.Downloads {
		counts[d.Status]++
		switch d.Status {
		case model.DownloadDownloaded:
			fmt.Fprintf(os.Stderr, "✓ [%d] %s\n", d.ReferenceIndex, d.Title)
		case model.DownloadSkipped:
			if cfg.Output.Verbose {
				fmt.Fprintf(os.Stderr, "· [%d] already stored\n", d.ReferenceIndex)
			}
		default:
			fmt.Fprintf(os.Stderr, "✗ [%d] %s: %s\n", d.ReferenceIndex, d.Title, d.Error)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	printBanner(os.Stderr, "Download Complete")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  References:  %d\n", len(report.Titles))
	fmt.Fprintf(os.Stderr, "  Downloaded:  %d\n", counts[model.DownloadDownloaded])
	fmt.Fprintf(os.Stderr, "  Skipped:     %d\n", counts[model.DownloadSkipped])
	fmt.Fprintf(os.Stderr, "  Failed:      %d\n", counts[model.DownloadFailed])
	fmt.Fprintf(os.Stderr, "  Directory:   %s\n", cfg.Verify.ReferenceDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
