package llm

import (
	"context"
	"time"

	"github.com/ppiankov/citecheck/internal/metrics"
	"go.uber.org/zap"
)

// Instrumented wraps a Completer with call metrics and debug logging
type Instrumented struct {
	next    Completer
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewInstrumented wraps next. Both m and logger may be nil.
func NewInstrumented(next Completer, m *metrics.Metrics, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		next:    next,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Name returns the wrapped provider name
func (c *Instrumented) Name() string {
	return c.next.Name()
}

// Complete forwards to the wrapped provider
func (c *Instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := c.now()
	reply, err := c.next.Complete(ctx, prompt)
	elapsed := c.now().Sub(start)

	c.metrics.ObserveLLM(c.next.Name(), elapsed, err)
	c.logger.Debug("llm call",
		zap.String("provider", c.next.Name()),
		zap.Int("prompt_runes", len([]rune(prompt))),
		zap.Int("reply_runes", len([]rune(reply))),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	return reply, err
}
