// Package verify judges whether citing passages agree with the references
// they cite
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/reconcile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reasonRunes = 120

// Options tunes verification
type Options struct {
	Timeout time.Duration // Per-marker bound covering evidence and model call
	Workers int           // Concurrent markers in VerifyAll
}

// Verifier drives each marker from pending to skipped, verified or errored
type Verifier struct {
	completer llm.Completer
	evidence  Evidence
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a verifier
func New(completer llm.Completer, evidence Evidence, opts Options, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Verifier{
		completer: completer,
		evidence:  evidence,
		opts:      opts,
		logger:    logger,
	}
}

// WithMetrics attaches verification counters
func (v *Verifier) WithMetrics(m *metrics.Metrics) *Verifier {
	v.metrics = m
	return v
}

// Verify produces the outcome for one marker. It never fails: every error is
// folded into a skipped or errored outcome.
func (v *Verifier) Verify(ctx context.Context, m model.CitationMarker, titles []model.ReferenceTitle) model.VerificationOutcome {
	out := v.verify(ctx, m, titles)
	v.metrics.IncVerification(string(out.Status), string(out.Verdict))

	fields := []zap.Field{
		zap.Ints("citation", m.Numbers),
		zap.String("status", string(out.Status)),
	}
	switch out.Status {
	case model.StatusVerified:
		v.logger.Debug("citation verified", append(fields, zap.String("verdict", string(out.Verdict)))...)
	case model.StatusError:
		v.logger.Warn("citation verification failed", append(fields, zap.String("reason", out.Reason))...)
	default:
		v.logger.Info("citation skipped", append(fields, zap.String("reason", out.Reason))...)
	}
	return out
}

func (v *Verifier) verify(ctx context.Context, m model.CitationMarker, titles []model.ReferenceTitle) model.VerificationOutcome {
	if !reconcile.InRange(m, len(titles)) {
		return model.Skipped(m, fmt.Sprintf("citation %v outside the %d-entry reference list", m.Numbers, len(titles)))
	}
	if err := ctx.Err(); err != nil {
		return model.Errored(m, errorReason(err))
	}

	if v.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.opts.Timeout)
		defer cancel()
	}

	bundle, err := v.evidence.Gather(ctx, m.Numbers, titles)
	if errors.Is(err, ErrEvidenceMissing) || errors.Is(err, ErrEvidenceEmpty) {
		return model.Skipped(m, logging.Truncate(err.Error(), reasonRunes))
	}
	if err != nil {
		return model.Errored(m, errorReason(err))
	}

	var prompt string
	switch bundle.Mode {
	case model.ModeLightweight:
		prompt = llm.MetadataPrompt(m.Context, bundle.Text())
	default:
		prompt = llm.FullTextPrompt(m.Context, bundle.Text())
	}

	response, err := v.completer.Complete(ctx, prompt)
	if err != nil {
		return model.Errored(m, errorReason(err))
	}

	verdict, reason := Classify(response)
	return model.Verified(m, verdict, reason, response, len(bundle.Blocks))
}

// VerifyAll verifies markers concurrently. The result has one outcome per
// marker, in marker order.
func (v *Verifier) VerifyAll(ctx context.Context, markers []model.CitationMarker, titles []model.ReferenceTitle) []model.VerificationOutcome {
	outcomes := make([]model.VerificationOutcome, len(markers))

	var g errgroup.Group
	g.SetLimit(v.opts.Workers)
	for i, m := range markers {
		g.Go(func() error {
			outcomes[i] = v.Verify(ctx, m, titles)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Classify reads a model reply. The consistent token wins over the
// inconsistent one; a reply with neither is ambiguous. For inconsistent
// replies the free-text reason inside the markup is returned.
func Classify(response string) (model.Verdict, string) {
	switch {
	case strings.Contains(response, llm.TokenConsistent):
		return model.VerdictConsistent, ""
	case strings.Contains(response, llm.TokenInconsistent):
		return model.VerdictInconsistent, inconsistentReason(response)
	default:
		return model.VerdictAmbiguous, ""
	}
}

var reasonMarkup = strings.NewReplacer("<否:", "", "<否：", "", ">", "")

func inconsistentReason(response string) string {
	reason := strings.TrimSpace(reasonMarkup.Replace(response))
	return strings.TrimSpace(strings.Trim(reason, `'"‘’“”`))
}

// Summarize counts outcomes. Accuracy is consistent / (consistent +
// inconsistent) and is left undefined when no such verdict exists.
func Summarize(outcomes []model.VerificationOutcome) model.VerificationSummary {
	s := model.VerificationSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case model.StatusSkipped:
			s.Skipped++
		case model.StatusError:
			s.Errored++
		case model.StatusVerified:
			s.Verified++
			switch o.Verdict {
			case model.VerdictConsistent:
				s.Consistent++
			case model.VerdictInconsistent:
				s.Inconsistent++
			case model.VerdictAmbiguous:
				s.Ambiguous++
			}
		}
	}
	if judged := s.Consistent + s.Inconsistent; judged > 0 {
		s.Accuracy = float64(s.Consistent) / float64(judged)
		s.AccuracyDefined = true
	}
	return s
}

func errorReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out: " + logging.Truncate(err.Error(), reasonRunes)
	}
	return logging.Truncate(err.Error(), reasonRunes)
}
