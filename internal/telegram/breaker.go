package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the Bot API is considered unavailable.
var ErrCircuitOpen = gobreaker.ErrOpenState

// breakerConfig holds configuration for the circuit breakers guarding Bot API calls.
type breakerConfig struct {
	Name          string
	MaxFailures   uint32
	HalfOpenLimit uint32
	ResetInterval time.Duration
}

func newBreaker(cfg breakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.HalfOpenLimit == 0 {
		cfg.HalfOpenLimit = 1
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenLimit,
		Interval:    cfg.ResetInterval,
		Timeout:     cfg.ResetInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// Rejected requests and cancellations say nothing about API health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, bot.ErrorBadRequest) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// guarded runs call through cb, discarding the result value.
func guarded(cb *gobreaker.CircuitBreaker, call func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, call()
	})
	return err
}
