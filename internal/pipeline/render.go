package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/model"
)

const (
	summaryProblems    = 5
	summaryReasonRunes = 80
)

// Renderer writes reports to files and terminals
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	var b strings.Builder
	if err := r.WriteJSON(&b, report); err != nil {
		return err
	}
	return writeFile(path, []byte(b.String()))
}

// WriteJSON encodes the report as indented JSON into w
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	var b strings.Builder
	r.WriteMarkdown(&b, report)
	return writeFile(path, []byte(b.String()))
}

// WriteMarkdown renders the Markdown report into w
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "# Citation check: %s\n\n", filepath.Base(report.Document))
	fmt.Fprintf(w, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(w, "- Mode: %s\n", report.Mode)
	fmt.Fprintf(w, "- Checked: %s\n", report.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "- Text length: %d characters\n\n", report.Characters)

	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "## Warnings\n\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	s := report.Stats
	fmt.Fprintf(w, "## Citation statistics\n\n")
	fmt.Fprintf(w, "| | |\n|---|---|\n")
	fmt.Fprintf(w, "| References | %d |\n", s.TotalReferences)
	fmt.Fprintf(w, "| Citation markers | %d |\n", s.TotalMarkers)
	fmt.Fprintf(w, "| Citations | %d |\n", s.TotalCitations)
	fmt.Fprintf(w, "| Never cited | %s |\n", formatInts(s.Missing))
	fmt.Fprintf(w, "| Cited more than once | %s |\n", formatDuplicates(s.Duplicates))
	if len(s.OutOfRange) > 0 {
		fmt.Fprintf(w, "| No reference entry | %s |\n", formatInts(s.OutOfRange))
	}
	fmt.Fprintln(w)

	if len(report.Matches) > 0 {
		fmt.Fprintf(w, "## References (%d of %d found)\n\n", report.FoundCount(), len(report.Matches))
		fmt.Fprintf(w, "| # | Title | Match | Similarity |\n|---|---|---|---|\n")
		for _, m := range report.Matches {
			match, sim := "not found", "-"
			if m.Found {
				match = m.Candidate.CandidateTitle
				if m.Candidate.Paper.ID != "" {
					match = fmt.Sprintf("[%s](%s)", m.Candidate.CandidateTitle, m.Candidate.Paper.ID)
				}
				sim = fmt.Sprintf("%.2f", m.Candidate.Similarity)
			} else if m.Error != "" {
				match = "error: " + m.Error
			}
			fmt.Fprintf(w, "| %d | %s | %s | %s |\n", m.ReferenceIndex, cell(m.QueryTitle), cell(match), sim)
		}
		fmt.Fprintln(w)
	}

	if len(report.Downloads) > 0 {
		fmt.Fprintf(w, "## Downloads\n\n")
		for _, d := range report.Downloads {
			line := fmt.Sprintf("- [%d] %s", d.ReferenceIndex, d.Status)
			if d.Error != "" {
				line += ": " + d.Error
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}

	sum := report.Summary
	fmt.Fprintf(w, "## Verification\n\n")
	fmt.Fprintf(w, "%d markers: %d verified (%d consistent, %d inconsistent, %d ambiguous), %d skipped, %d errored.\n\n",
		sum.Total, sum.Verified, sum.Consistent, sum.Inconsistent, sum.Ambiguous, sum.Skipped, sum.Errored)
	fmt.Fprintf(w, "Accuracy: %s\n\n", formatAccuracy(sum))

	if len(report.Outcomes) > 0 {
		fmt.Fprintf(w, "| Citation | Status | Verdict | Reason | Context |\n|---|---|---|---|---|\n")
		for _, o := range report.Outcomes {
			verdict := string(o.Verdict)
			if verdict == "" {
				verdict = "-"
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
				formatInts(o.Citation), o.Status, verdict, cell(o.Reason), cell(logging.Truncate(o.Context, 160)))
		}
		fmt.Fprintln(w)
	}
}

// RenderSummary prints a short overview and the first problem citations
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Stats
	fmt.Fprintf(w, "\n%s\n", report.Document)
	fmt.Fprintf(w, "  references: %d  markers: %d  citations: %d\n", s.TotalReferences, s.TotalMarkers, s.TotalCitations)
	if len(s.Missing) > 0 {
		fmt.Fprintf(w, "  never cited: %s\n", formatInts(s.Missing))
	}
	if len(s.Duplicates) > 0 {
		fmt.Fprintf(w, "  cited more than once: %s\n", formatDuplicates(s.Duplicates))
	}
	if len(report.Matches) > 0 {
		fmt.Fprintf(w, "  found in index: %d/%d\n", report.FoundCount(), len(report.Matches))
	}

	sum := report.Summary
	fmt.Fprintf(w, "  verification: %d consistent, %d inconsistent, %d ambiguous, %d skipped, %d errored\n",
		sum.Consistent, sum.Inconsistent, sum.Ambiguous, sum.Skipped, sum.Errored)
	fmt.Fprintf(w, "  accuracy: %s\n", formatAccuracy(sum))

	problems := Problems(report.Outcomes)
	if len(problems) == 0 {
		return
	}
	fmt.Fprintf(w, "  problem citations:\n")
	for i, o := range problems {
		if i == summaryProblems {
			fmt.Fprintf(w, "    ... and %d more\n", len(problems)-summaryProblems)
			break
		}
		reason := o.Reason
		if reason == "" {
			reason = string(o.Verdict)
		}
		fmt.Fprintf(w, "    %s %s\n", formatInts(o.Citation), logging.Truncate(reason, summaryReasonRunes))
	}
}

// Problems returns verified outcomes the model did not judge consistent
func Problems(outcomes []model.VerificationOutcome) []model.VerificationOutcome {
	var out []model.VerificationOutcome
	for _, o := range outcomes {
		if o.Status == model.StatusVerified && o.Verdict != model.VerdictConsistent {
			out = append(out, o)
		}
	}
	return out
}

func formatAccuracy(s model.VerificationSummary) string {
	if !s.AccuracyDefined {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%% (%d/%d)", s.Accuracy*100, s.Consistent, s.Consistent+s.Inconsistent)
}

func formatInts(nums []int) string {
	if len(nums) == 0 {
		return "none"
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatDuplicates(d map[int]int) string {
	if len(d) == 0 {
		return "none"
	}
	keys := make([]int, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d×%d", k, d[k])
	}
	return strings.Join(parts, ", ")
}

// cell escapes text for a Markdown table cell
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
