package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestETagFor(t *testing.T) {
	a := ETagFor([]byte(`[1]`))
	b := ETagFor([]byte(`[2]`))

	if a == b {
		t.Error("different data should produce different ETags")
	}
	if a != ETagFor([]byte(`[1]`)) {
		t.Error("ETag must be deterministic")
	}
	if len(a) != 18 || a[0] != '"' || a[len(a)-1] != '"' {
		t.Errorf("ETag = %s, want quoted 16 hex chars", a)
	}
}

func TestNotModified(t *testing.T) {
	etag := ETagFor([]byte(`[1]`))

	tests := []struct {
		name        string
		ifNoneMatch string
		want        bool
	}{
		{"no header", "", false},
		{"match", etag, true},
		{"weak match", "W/" + etag, true},
		{"list match", `"other", ` + etag, true},
		{"wildcard", "*", true},
		{"mismatch", `"other"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/properties", nil)
			if tt.ifNoneMatch != "" {
				r.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			if got := NotModified(r, etag); got != tt.want {
				t.Errorf("NotModified() = %v, want %v", got, tt.want)
			}
		})
	}

	if NotModified(nil, etag) {
		t.Error("NotModified(nil) should be false")
	}
}

func TestSetCacheHeaders(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := NewEntry([]byte(`[]`), 1, false, now, 5*time.Minute)

	h := http.Header{}
	SetCacheHeaders(h, entry, now.Add(time.Minute))

	if h.Get("ETag") != entry.ETag {
		t.Errorf("ETag = %q", h.Get("ETag"))
	}
	if h.Get("Cache-Control") != "public, max-age=240" {
		t.Errorf("Cache-Control = %q", h.Get("Cache-Control"))
	}
	if h.Get("Expires") != "Sun, 01 Mar 2026 10:05:00 GMT" {
		t.Errorf("Expires = %q", h.Get("Expires"))
	}
	if h.Get("Last-Modified") != "Sun, 01 Mar 2026 10:00:00 GMT" {
		t.Errorf("Last-Modified = %q", h.Get("Last-Modified"))
	}

	empty := http.Header{}
	SetCacheHeaders(empty, nil, now)
	if len(empty) != 0 {
		t.Errorf("nil entry wrote headers: %v", empty)
	}
}
