package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "listing_upstream_quota_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listing_upstream_quota_blocks_total",
		Help: "Total number of requests blocked due to critical upstream quota",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listing_upstream_quota_throttles_total",
		Help: "Total number of requests throttled due to low upstream quota",
	})
)

// Upstream quota headers.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// epochThreshold separates "seconds until reset" from a unix timestamp in X-RateLimit-Reset.
const epochThreshold = 1_000_000_000

// DefaultThrottleDelay is the pause applied while quota is in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Tracker monitors upstream quota and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	// ThrottleDelay is slept before a request in the warning band.
	ThrottleDelay time.Duration

	now func() time.Time
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		ThrottleDelay: DefaultThrottleDelay,
		now:           time.Now,
	}
}

// GetState retrieves the current quota state from Redis.
// Returns a healthy default if nothing has been observed yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	values, err := t.redis.MGet(ctx, RedisKeyRemaining, RedisKeyLimit, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	if values[0] == nil {
		t.logger.Debug().Msg("No quota state in Redis, returning default healthy state")
		now := t.now()
		return &State{
			Remaining:  100,
			ResetAt:    now.Add(60 * time.Second),
			LastUpdate: now,
			IsHealthy:  true,
		}, nil
	}

	state := &State{}
	if state.Remaining, err = intValue(values[0]); err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	if values[1] != nil {
		if state.Limit, err = intValue(values[1]); err != nil {
			return nil, fmt.Errorf("parse limit: %w", err)
		}
	}
	if values[2] != nil {
		reset, err := intValue(values[2])
		if err != nil {
			return nil, fmt.Errorf("parse reset timestamp: %w", err)
		}
		state.ResetAt = time.Unix(int64(reset), 0)
	}
	if s, ok := values[3].(string); ok {
		if state.LastUpdate, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses quota headers and updates the shared state.
// Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	now := t.now()
	state := &State{
		Remaining:  remain,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		if reset >= epochThreshold {
			state.ResetAt = time.Unix(reset, 0)
		} else {
			state.ResetAt = now.Add(time.Duration(reset) * time.Second)
		}
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			state.Limit = limit
		}
	}
	state.UpdateHealth()

	ttl := state.TimeUntilReset(now) + time.Minute

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyLimit, state.Limit, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.Format(time.RFC3339Nano), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Upstream quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Upstream quota WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Upstream quota state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent.
// It returns false in the critical band and pauses for ThrottleDelay in the warning band.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset(t.now())).
			Msg("Upstream quota critical - blocking request")

		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Upstream quota warning - throttling request")

		quotaThrottlesTotal.Inc()
		timer := time.NewTimer(t.ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

func intValue(v interface{}) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected redis value type")
	}
	return strconv.Atoi(s)
}
