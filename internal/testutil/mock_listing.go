// Package testutil provides testing utilities for the listing sync service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// APIKey is the credential the mock server expects by default.
const APIKey = "test-api-key"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockListing is a configurable mock of the upstream listing API.
type MockListing struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// RequireKey rejects requests without the expected X-Authorization value.
	RequireKey string

	requestCount      int
	requests          []*url.URL
	lastRequestHeader http.Header
}

// NewMockListing creates a new mock listing server.
func NewMockListing() *MockListing {
	mock := &MockListing{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		u := *r.URL
		mock.requests = append(mock.requests, &u)
		mock.lastRequestHeader = r.Header.Clone()
		requireKey := mock.RequireKey
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if requireKey != "" && r.Header.Get("X-Authorization") != requireKey {
			writeJSON(w, http.StatusUnauthorized, `{"error":"Invalid API key"}`)
			return
		}

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, `{"error":"Not found"}`)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockListing) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockListing) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockListing) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requests = nil
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockListing) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockListing) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence serves responses in order; the last one repeats.
func (m *MockListing) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockListing) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// Requests returns the request URLs in arrival order.
func (m *MockListing) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*url.URL, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockListing) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// PaginationStyle selects how a paged listing advertises continuation.
type PaginationStyle int

const (
	// StyleNextURL reports counters plus an absolute next_page URL (null on the last page).
	StyleNextURL PaginationStyle = iota

	// StyleCounters reports limit, page and total on the first page and only page afterwards.
	StyleCounters

	// StyleBare reports no pagination block; only page length signals the end.
	StyleBare
)

// Listing describes a paged collection served by NewListingHandler.
type Listing struct {
	// Total number of items in the collection.
	Total int

	Style PaginationStyle

	// ItemsKey is the array key (default "content").
	ItemsKey string

	// FailPage answers that page with FailStatus (default 500).
	FailPage   int
	FailStatus int
}

// NewListingHandler serves a deterministic collection using page and limit query params.
// Items look like {"public_id":"EB-<n>","title":"Property <n>"} with n starting at 1.
func NewListingHandler(l Listing) http.HandlerFunc {
	itemsKey := l.ItemsKey
	if itemsKey == "" {
		itemsKey = "content"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 20)

		if l.FailPage > 0 && page == l.FailPage {
			status := l.FailStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			writeJSON(w, status, `{"error":"Upstream failure"}`)
			return
		}

		start := (page - 1) * limit
		end := start + limit
		if start > l.Total {
			start = l.Total
		}
		if end > l.Total {
			end = l.Total
		}

		items := make([]map[string]any, 0, end-start)
		for n := start + 1; n <= end; n++ {
			items = append(items, map[string]any{
				"public_id": fmt.Sprintf("EB-%d", n),
				"title":     fmt.Sprintf("Property %d", n),
			})
		}

		body := map[string]any{itemsKey: items}
		switch l.Style {
		case StyleNextURL:
			var next any
			if end < l.Total {
				nq := url.Values{}
				for k, v := range q {
					nq[k] = v
				}
				nq.Set("page", strconv.Itoa(page+1))
				nq.Set("limit", strconv.Itoa(limit))
				next = "http://" + r.Host + r.URL.Path + "?" + nq.Encode()
			}
			body["pagination"] = map[string]any{
				"limit": limit, "page": page, "total": l.Total, "next_page": next,
			}
		case StyleCounters:
			if page == 1 {
				body["pagination"] = map[string]any{"limit": limit, "page": page, "total": l.Total}
			} else {
				body["pagination"] = map[string]any{"page": page}
			}
		}

		data, _ := json.Marshal(body)
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		writeJSON(w, http.StatusOK, string(data))
	}
}

// NewHealthyResponse creates a standard 200 OK response with quota headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "100",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1",
			"Retry-After":           "1",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": "Invalid API key"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
