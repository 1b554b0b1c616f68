package cli

import (
	"fmt"
	"strings"

	"github.com/ppiankov/citecheck/internal/feedback"
	"github.com/spf13/cobra"
)

var feedbackPath string

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback <text>",
	Short: "Record feedback about a check result",
	Long: `Feedback appends a timestamped line to the feedback log (feedback.path
in the configuration, feedback.log by default).

Example:
  citecheck feedback "citation [4] in paper.pdf was flagged but is correct"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFor(cmd)
		if err != nil {
			return err
		}
		path := cfg.Feedback.Path
		if feedbackPath != "" {
			path = feedbackPath
		}

		entry, err := feedback.NewLog(path).Append(strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("record feedback: %w", err)
		}

		fmt.Printf("✓ Feedback recorded (%s) in %s\n", entry.ID, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.Flags().StringVar(&feedbackPath, "file", "", "feedback log path (overrides feedback.path)")
}
