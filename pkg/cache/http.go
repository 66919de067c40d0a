package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the snapshot lifetime when none is configured
	DefaultTTL = 5 * time.Minute
)

// ETagFor returns a strong ETag for data.
func ETagFor(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// SetCacheHeaders writes ETag, Cache-Control, Expires and Last-Modified for entry.
func SetCacheHeaders(h http.Header, entry *Entry, now time.Time) {
	if entry == nil {
		return
	}
	if entry.ETag != "" {
		h.Set("ETag", entry.ETag)
	}
	maxAge := int(entry.TTLAt(now).Seconds())
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
	h.Set("Expires", entry.Expires.UTC().Format(http.TimeFormat))
	if !entry.CachedAt.IsZero() {
		h.Set("Last-Modified", entry.CachedAt.UTC().Format(http.TimeFormat))
	}
}

// NotModified reports whether the request's If-None-Match matches etag.
// Weak validators compare equal to their strong form.
func NotModified(r *http.Request, etag string) bool {
	if r == nil || etag == "" {
		return false
	}
	header := r.Header.Get("If-None-Match")
	if header == "" {
		return false
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			NotModifiedResponses.Inc()
			return true
		}
	}
	return false
}
