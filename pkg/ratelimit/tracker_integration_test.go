//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Sternrassler/listing-sync/internal/testutil"
	"github.com/rs/zerolog"
)

func TestTracker_Integration_SharedAcrossInstances(t *testing.T) {
	redisClient := testutil.StartRedis(t)

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	writer := NewTracker(redisClient, logger)
	reader := NewTracker(redisClient, logger)
	ctx := context.Background()

	if err := writer.UpdateFromHeaders(ctx, quotaHeaders("3", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("second tracker should see the critical quota written by the first")
	}

	ttl, err := redisClient.TTL(ctx, RedisKeyRemaining).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 2*time.Minute+time.Second {
		t.Errorf("TTL = %v, want reset window plus a minute", ttl)
	}
}

func TestTracker_Integration_Recovery(t *testing.T) {
	redisClient := testutil.StartRedis(t)

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("2", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	if allowed, _ := tracker.ShouldAllowRequest(ctx); allowed {
		t.Fatal("expected block in critical band")
	}

	if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("90", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	if allowed, _ := tracker.ShouldAllowRequest(ctx); !allowed {
		t.Error("expected requests to resume after quota recovers")
	}
}
