package ratelimit

import (
	"golang.org/x/time/rate"
)

// NewLimiter returns a local token bucket pacing requests to perSecond with burst.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
