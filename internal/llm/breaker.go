package llm

import (
	"context"
	"errors"
	"time"

	"curator/internal/core"
	"curator/internal/logger"

	"github.com/sony/gobreaker"
)

// BreakerSettings configure the circuit breaker around a backend.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Breaker stops calling a backend after repeated failures and lets one probe
// through once OpenTimeout has elapsed.
type Breaker struct {
	next TextGenerator
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next. Caller cancellations do not count as failures.
func NewBreaker(next TextGenerator, s BreakerSettings) *Breaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = time.Minute
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Generation circuit breaker state changed",
				"backend", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the wrapped backend name.
func (b *Breaker) Name() string { return b.next.Name() }

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Generate calls the wrapped backend unless the breaker is open.
func (b *Breaker) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &core.GenerationError{Backend: b.Name(), Reason: "circuit open", Err: err}
		}
		return "", err
	}
	return out.(string), nil
}
