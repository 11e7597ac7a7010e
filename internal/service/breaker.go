package service

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/config"
	"budgetapp/chatsync/internal/repository"
)

// NewBreaker builds the circuit breaker guarding remote source calls.
// Not-found answers count as successes.
func NewBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, repository.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

// remote runs fn through cb and maps breaker and repository errors to
// service errors.
func remote[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		case errors.Is(err, repository.ErrNotFound):
			return zero, ErrNotFound
		}
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

// remoteExec is remote for calls without a result.
func remoteExec(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := remote(cb, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}
