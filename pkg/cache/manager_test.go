package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis for unit tests.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, nil)
}

func TestManager_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	clock := newFakeClock()
	manager := NewManager(client, clock)
	ctx := context.Background()

	key := Key{Endpoint: "/v1/properties", PageSize: 50}
	entry := NewEntry([]byte(`[{"public_id":"EB-1"}]`), 2, true, clock.Now(), 5*time.Minute)

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if ttl := mr.TTL(key.String()); ttl != 5*time.Minute {
		t.Errorf("redis TTL = %v, want 5m", ttl)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != string(entry.Data) || got.Pages != 2 || !got.Truncated || got.ETag != entry.ETag {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}
}

func TestManager_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, nil)

	if _, err := manager.Get(context.Background(), Key{Endpoint: "/none"}); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_ExpiredByClockIsEvicted(t *testing.T) {
	client, mr := setupTestRedis(t)
	clock := newFakeClock()
	manager := NewManager(client, clock)
	ctx := context.Background()
	key := Key{Endpoint: "/v1/contacts"}

	_ = manager.Set(ctx, key, NewEntry([]byte(`[]`), 1, false, clock.Now(), time.Minute))
	clock.Advance(2 * time.Minute)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() error = %v, want ErrCacheMiss", err)
	}
	if mr.Exists(key.String()) {
		t.Error("expired entry should be deleted on read")
	}
}

func TestManager_ExpiredByRedisTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	clock := newFakeClock()
	manager := NewManager(client, clock)
	ctx := context.Background()
	key := Key{Endpoint: "/v1/contacts"}

	_ = manager.Set(ctx, key, NewEntry([]byte(`[]`), 1, false, clock.Now(), time.Minute))
	mr.FastForward(2 * time.Minute)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_InvalidEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, nil)
	key := Key{Endpoint: "/v1/properties"}

	if err := mr.Set(key.String(), "not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Get(context.Background(), key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_SetValidation(t *testing.T) {
	client, mr := setupTestRedis(t)
	clock := newFakeClock()
	manager := NewManager(client, clock)
	ctx := context.Background()

	if err := manager.Set(ctx, Key{Endpoint: "/x"}, nil); err == nil {
		t.Error("Set(nil) should fail")
	}

	stale := NewEntry([]byte(`[]`), 1, false, clock.Now().Add(-time.Hour), time.Minute)
	if err := manager.Set(ctx, Key{Endpoint: "/x"}, stale); err != nil {
		t.Errorf("Set(stale) error = %v", err)
	}
	if mr.Exists(Key{Endpoint: "/x"}.String()) {
		t.Error("expired entry should not be stored")
	}
}

func TestManager_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, nil)
	ctx := context.Background()
	key := Key{Endpoint: "/v1/properties"}

	_ = manager.Set(ctx, key, NewEntry([]byte(`[]`), 1, false, time.Now(), time.Minute))
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists(key.String()) {
		t.Error("entry still present after Delete")
	}
	if err := manager.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
