package cache

import (
	"time"
)

// Entry is a cached aggregation snapshot.
type Entry struct {
	// Data is the serialized item array.
	Data []byte `json:"data"`

	// ETag identifies Data for conditional requests.
	ETag string `json:"etag"`

	// Pages is the number of upstream pages the snapshot was built from.
	Pages int `json:"pages"`

	// Truncated marks a snapshot of an incomplete listing.
	Truncated bool `json:"truncated"`

	// Reason records why aggregation stopped.
	Reason string `json:"reason,omitempty"`

	// CachedAt is when the snapshot was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the snapshot becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry builds an entry cached at now and valid for ttl.
func NewEntry(data []byte, pages int, truncated bool, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Data:      data,
		ETag:      ETagFor(data),
		Pages:     pages,
		Truncated: truncated,
		CachedAt:  now,
		Expires:   now.Add(ttl),
	}
}

// IsExpiredAt returns true if the entry is stale at now.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTLAt returns the time until expiration, or 0 if already expired.
func (e *Entry) TTLAt(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was cached.
func (e *Entry) Age(now time.Time) time.Duration {
	if now.Before(e.CachedAt) {
		return 0
	}
	return now.Sub(e.CachedAt)
}
