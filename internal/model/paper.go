package model

import "time"

// Paper is a record returned by the external paper-search index
type Paper struct {
	ID         string    `json:"id"`                    // Entry identifier (arXiv abs URL)
	Title      string    `json:"title"`
	Authors    []string  `json:"authors,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Published  time.Time `json:"published,omitempty"`
	Updated    time.Time `json:"updated,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	PDFURL     string    `json:"pdf_url,omitempty"`
	DOI        string    `json:"doi,omitempty"`
	JournalRef string    `json:"journal_ref,omitempty"`
}

// MatchCandidate is the accepted search record for a reference title
type MatchCandidate struct {
	ReferenceIndex int     `json:"reference_index"`
	QueryTitle     string  `json:"query_title"`
	CandidateTitle string  `json:"candidate_title"`
	Similarity     float64 `json:"similarity"`
	Paper          Paper   `json:"paper"`
}

// MatchResult is the outcome of resolving one reference title. When Found is
// false Candidate is nil and Error may carry the provider failure text.
type MatchResult struct {
	ReferenceIndex int             `json:"reference_index"`
	QueryTitle     string          `json:"query_title"`
	Found          bool            `json:"found"`
	Candidate      *MatchCandidate `json:"candidate,omitempty"`
	Checked        int             `json:"checked"` // Candidates examined up to the accepted one
	Error          string          `json:"error,omitempty"`

	// Alternates are later candidates that also pass the threshold, in index
	// order. They never replace Candidate; downloads fall through to them.
	Alternates []MatchCandidate `json:"alternates,omitempty"`
}

// DownloadCandidates returns the accepted candidate followed by the alternates
func (m MatchResult) DownloadCandidates() []MatchCandidate {
	if !m.Found || m.Candidate == nil {
		return nil
	}
	out := make([]MatchCandidate, 0, 1+len(m.Alternates))
	out = append(out, *m.Candidate)
	return append(out, m.Alternates...)
}

// NotFound builds a negative MatchResult
func NotFound(ref ReferenceTitle, checked int, errText string) MatchResult {
	return MatchResult{
		ReferenceIndex: ref.Index,
		QueryTitle:     ref.Text,
		Checked:        checked,
		Error:          errText,
	}
}

// DownloadStatus reports what happened to a reference PDF
type DownloadStatus string

const (
	DownloadDownloaded DownloadStatus = "downloaded"
	DownloadSkipped    DownloadStatus = "skipped" // Already present in the store
	DownloadFailed     DownloadStatus = "failed"
)

// DownloadResult is the outcome of fetching one reference document
type DownloadResult struct {
	ReferenceIndex int            `json:"reference_index"`
	Title          string         `json:"title"`
	Status         DownloadStatus `json:"status"`
	Attempts       int            `json:"attempts,omitempty"` // Across every candidate tried
	SourceURL      string         `json:"source_url,omitempty"`
	Path           string         `json:"path,omitempty"`
	Error          string         `json:"error,omitempty"`
}
