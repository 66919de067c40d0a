package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_upstream_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_upstream_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_upstream_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass derives the backoff curve for an error class from base.
func RetryConfigForErrorClass(errorClass ErrorClass, base RetryConfig) RetryConfig {
	cfg := base
	switch errorClass {
	case ErrorClassServer:
		// 5xx - shorter ceiling
		if cfg.MaxBackoff > 10*cfg.InitialBackoff {
			cfg.MaxBackoff = 10 * cfg.InitialBackoff
		}
	case ErrorClassRateLimit:
		// 429 - back off harder
		cfg.InitialBackoff = 5 * base.InitialBackoff
		cfg.MaxBackoff = 2 * base.MaxBackoff
	case ErrorClassNetwork:
		cfg.InitialBackoff = 2 * base.InitialBackoff
	}
	if cfg.InitialBackoff > cfg.MaxBackoff {
		cfg.InitialBackoff = cfg.MaxBackoff
	}
	return cfg
}

// classBackOff follows the backoff curve of the most recent error class
// and honours an upstream Retry-After hint.
type classBackOff struct {
	base       RetryConfig
	curves     map[ErrorClass]*backoff.ExponentialBackOff
	class      ErrorClass
	retryAfter time.Duration
}

func newClassBackOff(base RetryConfig) *classBackOff {
	return &classBackOff{
		base:   base,
		curves: make(map[ErrorClass]*backoff.ExponentialBackOff),
	}
}

func (b *classBackOff) observe(class ErrorClass, retryAfter time.Duration) {
	b.class = class
	b.retryAfter = retryAfter
}

// NextBackOff implements backoff.BackOff.
func (b *classBackOff) NextBackOff() time.Duration {
	cfg := RetryConfigForErrorClass(b.class, b.base)
	if b.retryAfter > 0 {
		wait := b.retryAfter
		b.retryAfter = 0
		if wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
		return wait
	}

	curve, ok := b.curves[b.class]
	if !ok {
		curve = backoff.NewExponentialBackOff()
		curve.InitialInterval = cfg.InitialBackoff
		curve.MaxInterval = cfg.MaxBackoff
		curve.Multiplier = cfg.BackoffMultiplier
		curve.RandomizationFactor = 0.2
		curve.MaxElapsedTime = 0
		curve.Reset()
		b.curves[b.class] = curve
	}
	return curve.NextBackOff()
}

// Reset implements backoff.BackOff.
func (b *classBackOff) Reset() {
	b.curves = make(map[ErrorClass]*backoff.ExponentialBackOff)
	b.class = ""
	b.retryAfter = 0
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// Errors classified as client errors are returned immediately.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error, classify func(error) ErrorClass) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrContextCancelled, err)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	policy := newClassBackOff(cfg)
	attempt := 0
	var lastErr error
	var lastClass ErrorClass

	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		lastClass = classify(err)
		policy.observe(lastClass, retryAfterOf(err))

		if !shouldRetry(lastClass) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(string(lastClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(wait.Seconds())
		log.Debug().
			Err(err).
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")
	}

	// #nosec G115 -- maxAttempts is at least 1
	withRetries := backoff.WithMaxRetries(policy, uint64(maxAttempts-1))
	err := backoff.RetryNotify(operation, backoff.WithContext(withRetries, ctx), notify)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn().
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Msg("Context cancelled during retry backoff")
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctxErr)
	}

	if !shouldRetry(lastClass) {
		return err
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	log.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
}

func retryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
