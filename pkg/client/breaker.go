package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "listing_upstream_circuit_state",
	Help: "Upstream circuit breaker state (0 closed, 1 half-open, 2 open)",
}, []string{"name"})

// newBreaker trips after consecutiveFailures server/network failures in a
// row and probes again after cooldown. Client errors count as successes.
func newBreaker(name string, consecutiveFailures uint32, cooldown time.Duration, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, ErrContextCancelled) {
				return true
			}
			return classOf(err) == ErrorClassClient
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			event := logger.Warn()
			if to == gobreaker.StateClosed {
				event = logger.Info()
			}
			event.
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit state changed")
		},
	})
}

// breakerError maps gobreaker rejections to ErrCircuitOpen.
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
