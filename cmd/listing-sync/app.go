package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/listing-sync/internal/config"
	"github.com/Sternrassler/listing-sync/pkg/cache"
	"github.com/Sternrassler/listing-sync/pkg/client"
	"github.com/Sternrassler/listing-sync/pkg/easybroker"
	"github.com/Sternrassler/listing-sync/pkg/syncer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app holds the wired service graph.
type app struct {
	cfg      *config.Config
	redis    *redis.Client
	upstream *client.Client
	service  *easybroker.Service
	sync     *syncer.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.RedisEnabled() {
		a.redis = redis.NewClient(cfg.RedisOptions())
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Address, err)
		}
		log.Info().Str("address", cfg.Redis.Address).Msg("Connected to Redis")
	}

	upstream, err := client.New(cfg.ClientConfig(a.redis))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	a.upstream = upstream

	store, err := a.cacheStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = easybroker.NewService(upstream, easybroker.Config{
		Aggregator: cfg.AggregatorConfig(),
		Cache:      store,
		CacheTTL:   cfg.Cache.TTL,
	})

	if cfg.Sync.Enabled {
		a.sync, err = syncer.New(syncer.CatalogJobs(a.service, cfg.Pagination.DefaultPageSize), syncer.Config{
			Schedule:    cfg.Sync.Schedule,
			Concurrency: cfg.Sync.Concurrency,
			JobTimeout:  cfg.Sync.JobTimeout,
			OnStart:     cfg.Sync.OnStart,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create warmup scheduler: %w", err)
		}
	}

	return a, nil
}

// cacheStore returns the configured snapshot store, or nil when caching is off.
func (a *app) cacheStore() (cache.Store, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	memory, err := cache.NewMemory(a.cfg.Cache.MemorySize, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	if a.cfg.Cache.Shared && a.redis != nil {
		return cache.NewLayered(memory, cache.NewManager(a.redis, nil)), nil
	}
	return memory, nil
}

// ready pings Redis when configured.
func (a *app) ready(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx).Err()
}

// Close releases the client and Redis connection.
func (a *app) Close() error {
	var errs []error
	if a.upstream != nil {
		errs = append(errs, a.upstream.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
