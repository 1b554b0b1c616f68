package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling the index while the breaker is open
var ErrCircuitOpen = errors.New("search circuit open")

// BreakerSettings tunes the circuit breaker
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32        // Failures in a row that open the circuit
	OpenTimeout         time.Duration // Time spent open before a trial request
}

// DefaultBreakerSettings opens after 5 consecutive failures for 30 seconds
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "arxiv",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// BreakerSearcher stops calling a failing index so a run with many titles does
// not wait out one timeout per title
type BreakerSearcher struct {
	next Searcher
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSearcher wraps next with a circuit breaker
func NewBreakerSearcher(next Searcher, settings BreakerSettings, logger *zap.Logger) *BreakerSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("search circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A cancelled run says nothing about the health of the index
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerSearcher{next: next, cb: cb}
}

// Search forwards to the wrapped searcher unless the circuit is open
func (s *BreakerSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.Paper, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Search(ctx, query, maxResults)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	papers, _ := out.([]model.Paper)
	return papers, nil
}

// State reports the breaker state for diagnostics
func (s *BreakerSearcher) State() string {
	return s.cb.State().String()
}
