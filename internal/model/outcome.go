package model

import "fmt"

// Status is the terminal state of verifying one citation marker
type Status string

const (
	StatusVerified Status = "verified"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// Verdict classifies a model response for a verified marker
type Verdict string

const (
	VerdictNone         Verdict = ""
	VerdictConsistent   Verdict = "consistent"
	VerdictInconsistent Verdict = "inconsistent"
	VerdictAmbiguous    Verdict = "ambiguous"
)

// VerificationOutcome is the immutable result for one marker. Verdict is set
// only when Status is StatusVerified.
type VerificationOutcome struct {
	Citation      []int   `json:"citation"`
	Context       string  `json:"context,omitempty"`
	Status        Status  `json:"status"`
	Verdict       Verdict `json:"verdict,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	Response      string  `json:"response,omitempty"`       // Raw model reply
	EvidenceCount int     `json:"evidence_count,omitempty"` // Reference blocks shown to the model
}

// Skipped builds a SKIPPED outcome
func Skipped(m CitationMarker, reason string) VerificationOutcome {
	return VerificationOutcome{Citation: m.Numbers, Context: m.Context, Status: StatusSkipped, Reason: reason}
}

// Errored builds an ERRORED outcome
func Errored(m CitationMarker, reason string) VerificationOutcome {
	return VerificationOutcome{Citation: m.Numbers, Context: m.Context, Status: StatusError, Reason: reason}
}

// Verified builds a VERIFIED outcome
func Verified(m CitationMarker, verdict Verdict, reason, response string, evidenceCount int) VerificationOutcome {
	return VerificationOutcome{
		Citation:      m.Numbers,
		Context:       m.Context,
		Status:        StatusVerified,
		Verdict:       verdict,
		Reason:        reason,
		Response:      response,
		EvidenceCount: evidenceCount,
	}
}

// Check reports whether the status/verdict pair is one of the allowed combinations.
func (o VerificationOutcome) Check() error {
	switch o.Status {
	case StatusVerified:
		switch o.Verdict {
		case VerdictConsistent, VerdictInconsistent, VerdictAmbiguous:
			return nil
		default:
			return fmt.Errorf("verified outcome with verdict %q", o.Verdict)
		}
	case StatusSkipped, StatusError:
		if o.Verdict != VerdictNone {
			return fmt.Errorf("%s outcome carries verdict %q", o.Status, o.Verdict)
		}
		return nil
	default:
		return fmt.Errorf("unknown status %q", o.Status)
	}
}

// VerificationSummary aggregates outcomes. Accuracy is only meaningful when
// AccuracyDefined is true (at least one consistent or inconsistent verdict).
type VerificationSummary struct {
	Total           int     `json:"total"`
	Verified        int     `json:"verified"`
	Skipped         int     `json:"skipped"`
	Errored         int     `json:"errored"`
	Consistent      int     `json:"consistent"`
	Inconsistent    int     `json:"inconsistent"`
	Ambiguous       int     `json:"ambiguous"`
	Accuracy        float64 `json:"accuracy"`
	AccuracyDefined bool    `json:"accuracy_defined"`
}
