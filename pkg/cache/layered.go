package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

var _ Store = (*Layered)(nil)

// Layered reads the memory layer first and falls back to a shared store.
// A shared store failure degrades to a miss; it never fails a read.
type Layered struct {
	memory *Memory
	shared Store
}

// NewLayered combines memory with an optional shared store (nil disables L2).
func NewLayered(memory *Memory, shared Store) *Layered {
	return &Layered{memory: memory, shared: shared}
}

// Get returns the entry from the first layer that holds it.
// Shared-layer hits are promoted into memory.
func (l *Layered) Get(ctx context.Context, key Key) (*Entry, error) {
	if entry, err := l.memory.Get(ctx, key); err == nil {
		return entry, nil
	}
	if l.shared == nil {
		return nil, ErrCacheMiss
	}

	entry, err := l.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key.String()).Msg("Shared cache read failed")
		}
		return nil, ErrCacheMiss
	}

	_ = l.memory.Set(ctx, key, entry)
	return entry, nil
}

// Set writes to both layers.
func (l *Layered) Set(ctx context.Context, key Key, entry *Entry) error {
	if err := l.memory.Set(ctx, key, entry); err != nil {
		return err
	}
	if l.shared == nil {
		return nil
	}
	return l.shared.Set(ctx, key, entry)
}

// Delete removes the entry from both layers.
func (l *Layered) Delete(ctx context.Context, key Key) error {
	_ = l.memory.Delete(ctx, key)
	if l.shared == nil {
		return nil
	}
	return l.shared.Delete(ctx, key)
}
