package model

import "time"

// VerifyMode selects how evidence for a citation is gathered
type VerifyMode string

const (
	ModeHeavyweight VerifyMode = "heavyweight" // Full text of locally stored reference PDFs
	ModeLightweight VerifyMode = "lightweight" // Search-index metadata only, no file I/O
)

// Report is the complete result of checking one document
type Report struct {
	RunID      string     `json:"run_id"`
	Document   string     `json:"document"`   // Path of the checked document
	Characters int        `json:"characters"` // Length of the extracted text in runes
	Mode       VerifyMode `json:"mode"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`

	Titles  []ReferenceTitle `json:"titles"`
	Markers []CitationMarker `json:"markers"`
	Stats   CitationStats    `json:"stats"`

	Matches   []MatchResult    `json:"matches,omitempty"`
	Downloads []DownloadResult `json:"downloads,omitempty"`

	Outcomes []VerificationOutcome `json:"outcomes,omitempty"`
	Summary  VerificationSummary   `json:"summary"`

	Warnings []string `json:"warnings,omitempty"` // Soft failures worth surfacing to the reader
}

// FoundCount returns how many references were matched in the search index
func (r *Report) FoundCount() int {
	count := 0
	for _, m := range r.Matches {
		if m.Found {
			count++
		}
	}
	return count
}
