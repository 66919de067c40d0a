package easybroker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/listing-sync/internal/testutil"
	"github.com/Sternrassler/listing-sync/pkg/cache"
	"github.com/Sternrassler/listing-sync/pkg/client"
	"github.com/Sternrassler/listing-sync/pkg/pagination"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	mock  *testutil.MockListing
	svc   *Service
	mem   *cache.Memory
	clock *fakeClock
}

func newFixture(t *testing.T, policy pagination.Policy) *fixture {
	t.Helper()

	mock := testutil.NewMockListing()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig(testutil.APIKey)
	cfg.BaseURL = mock.URL()
	cfg.RateLimit = 1000
	cfg.Burst = 100
	cfg.MaxRetries = 1
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	upstream, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { upstream.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem, err := cache.NewMemory(32, clock)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}

	aggCfg := pagination.DefaultConfig()
	aggCfg.Policy = policy

	svc := NewService(upstream, Config{
		Aggregator: aggCfg,
		Cache:      mem,
		CacheTTL:   5 * time.Minute,
		Clock:      clock,
	})
	return &fixture{mock: mock, svc: svc, mem: mem, clock: clock}
}

func TestListProperties_AllPages(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetHandler(EndpointProperties, testutil.NewListingHandler(testutil.Listing{Total: 45}))

	filter := PropertyFilter{OperationType: "sale", Statuses: []string{"published"}}
	listing, err := f.svc.ListProperties(context.Background(), filter, ListOptions{PageSize: 20})
	if err != nil {
		t.Fatalf("ListProperties() error = %v", err)
	}

	if len(listing.Items) != 45 || listing.Pages != 3 || listing.Truncated {
		t.Errorf("listing = %d items, %d pages, truncated %v", len(listing.Items), listing.Pages, listing.Truncated)
	}
	if listing.FromCache || listing.ETag == "" {
		t.Errorf("fresh listing: FromCache %v, ETag %q", listing.FromCache, listing.ETag)
	}

	for i, u := range f.mock.Requests() {
		q := u.Query()
		if q.Get("search[operation_type]") != "sale" || q.Get("search[statuses][]") != "published" {
			t.Errorf("request %d lost the filter: %v", i+1, u)
		}
	}

	props, err := listing.Properties()
	if err != nil {
		t.Fatalf("Properties() error = %v", err)
	}
	if props[0].PublicID != "EB-1" || props[44].PublicID != "EB-45" {
		t.Errorf("order not preserved: first %s, last %s", props[0].PublicID, props[44].PublicID)
	}
}

func TestList_PageSizeClampedToProvider(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetHandler(EndpointProperties, testutil.NewListingHandler(testutil.Listing{Total: 10}))

	if _, err := f.svc.ListProperties(context.Background(), PropertyFilter{}, ListOptions{PageSize: 100}); err != nil {
		t.Fatalf("ListProperties() error = %v", err)
	}
	if got := f.mock.Requests()[0].Query().Get("limit"); got != "50" {
		t.Errorf("limit = %s, want 50", got)
	}
}

func TestList_Cache(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetHandler(EndpointProperties, testutil.NewListingHandler(testutil.Listing{Total: 5}))
	ctx := context.Background()

	first, err := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{})
	if err != nil {
		t.Fatalf("first ListProperties() error = %v", err)
	}

	second, err := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{})
	if err != nil {
		t.Fatalf("second ListProperties() error = %v", err)
	}
	if !second.FromCache || second.ETag != first.ETag || len(second.Items) != 5 {
		t.Errorf("second call = %+v, want cached copy of first", second)
	}
	if f.mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", f.mock.GetRequestCount())
	}

	refreshed, err := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{Refresh: true})
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if refreshed.FromCache || f.mock.GetRequestCount() != 2 {
		t.Errorf("Refresh should bypass the cache (requests %d)", f.mock.GetRequestCount())
	}

	f.clock.Advance(6 * time.Minute)
	if _, err := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{}); err != nil {
		t.Fatalf("after expiry error = %v", err)
	}
	if f.mock.GetRequestCount() != 3 {
		t.Errorf("expired snapshot should be refetched (requests %d)", f.mock.GetRequestCount())
	}
}

func TestList_FiltersHaveSeparateSnapshots(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetHandler(EndpointProperties, testutil.NewListingHandler(testutil.Listing{Total: 3}))
	ctx := context.Background()

	_, _ = f.svc.ListProperties(ctx, PropertyFilter{OperationType: "sale"}, ListOptions{})
	_, _ = f.svc.ListProperties(ctx, PropertyFilter{OperationType: "rental"}, ListOptions{})

	if f.mock.GetRequestCount() != 2 {
		t.Errorf("requests = %d, want one per filter", f.mock.GetRequestCount())
	}
}

func TestList_Unavailable(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetResponse(EndpointProperties, testutil.NewServerErrorResponse())

	listing, err := f.svc.ListProperties(context.Background(), PropertyFilter{}, ListOptions{})
	if !errors.Is(err, pagination.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if listing != nil {
		t.Errorf("listing = %+v, want nil", listing)
	}
	if f.mem.Len() != 0 {
		t.Error("failed listing must not be cached")
	}
}

func TestList_PartialBestEffort(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetHandler(EndpointProperties, testutil.NewListingHandler(testutil.Listing{Total: 60, FailPage: 2}))
	ctx := context.Background()

	listing, err := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{PageSize: 20})
	if err != nil {
		t.Fatalf("ListProperties() error = %v", err)
	}
	if len(listing.Items) != 20 || !listing.Truncated || listing.Reason != pagination.ReasonPageFailed {
		t.Errorf("listing = %d items, truncated %v, reason %s", len(listing.Items), listing.Truncated, listing.Reason)
	}

	// Truncated snapshots are kept only briefly.
	cached, _ := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{PageSize: 20})
	if !cached.FromCache || !cached.Truncated || cached.Reason != pagination.ReasonPageFailed {
		t.Errorf("cached = %+v, want truncated snapshot from cache with its stop reason", cached)
	}
	f.clock.Advance(truncatedTTL)
	again, _ := f.svc.ListProperties(ctx, PropertyFilter{}, ListOptions{PageSize: 20})
	if again.FromCache {
		t.Error("truncated snapshot outlived its short TTL")
	}
}

func TestList_FailFast(t *testing.T) {
	f := newFixture(t, pagination.PolicyFailFast)
	f.mock.SetHandler(EndpointProperties, testutil.NewListingHandler(testutil.Listing{Total: 60, FailPage: 2}))

	listing, err := f.svc.ListProperties(context.Background(), PropertyFilter{}, ListOptions{PageSize: 20})
	if !errors.Is(err, pagination.ErrIncomplete) {
		t.Fatalf("error = %v, want ErrIncomplete", err)
	}
	if listing == nil || len(listing.Items) != 20 {
		t.Errorf("listing = %+v, want the partial items", listing)
	}
	if f.mem.Len() != 0 {
		t.Error("incomplete listing must not be cached under fail-fast")
	}
}

func TestListContacts_ProviderKeys(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetHandler(EndpointContacts, testutil.NewListingHandler(testutil.Listing{Total: 7, ItemsKey: "contacts", Style: testutil.StyleBare}))
	f.mock.SetHandler(EndpointContactRequests, testutil.NewListingHandler(testutil.Listing{Total: 4, ItemsKey: "requests", Style: testutil.StyleBare}))
	ctx := context.Background()

	contacts, err := f.svc.ListContacts(ctx, ListOptions{PageSize: 5})
	if err != nil {
		t.Fatalf("ListContacts() error = %v", err)
	}
	if len(contacts.Items) != 7 || contacts.Pages != 2 {
		t.Errorf("contacts = %d items over %d pages, want 7 over 2", len(contacts.Items), contacts.Pages)
	}

	requests, err := f.svc.ListContactRequests(ctx, ListOptions{PageSize: 5})
	if err != nil {
		t.Fatalf("ListContactRequests() error = %v", err)
	}
	if len(requests.Items) != 4 || requests.Pages != 1 {
		t.Errorf("requests = %d items over %d pages, want 4 over 1", len(requests.Items), requests.Pages)
	}
}

func TestListing_Views(t *testing.T) {
	listing := &Listing{Items: []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)}, Truncated: true}

	items, _ := json.Marshal(listing.ItemsView())
	if string(items) != `{"items":[{"id":1},{"id":2}],"truncated":true}` {
		t.Errorf("ItemsView = %s", items)
	}

	content, _ := json.Marshal(listing.ContentView())
	want := `{"content":[{"id":1},{"id":2}],"pagination":{"limit":2,"page":1,"total":2,"next_page":null},"truncated":true}`
	if string(content) != want {
		t.Errorf("ContentView = %s, want %s", content, want)
	}

	empty, _ := json.Marshal((&Listing{}).ItemsView())
	if string(empty) != `{"items":[],"truncated":false}` {
		t.Errorf("empty ItemsView = %s", empty)
	}
}

func TestGetProperty(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetResponse(EndpointProperties+"/EB-1", testutil.NewHealthyResponse(`{"public_id":"EB-1","title":"Casa"}`))
	ctx := context.Background()

	body, err := f.svc.GetProperty(ctx, "EB-1")
	if err != nil {
		t.Fatalf("GetProperty() error = %v", err)
	}
	if !strings.Contains(string(body), `"Casa"`) {
		t.Errorf("body = %s", body)
	}

	if _, err := f.svc.GetProperty(ctx, "EB-1"); err != nil {
		t.Fatalf("cached GetProperty() error = %v", err)
	}
	if f.mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", f.mock.GetRequestCount())
	}

	if _, err := f.svc.GetProperty(ctx, "EB-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing property error = %v, want ErrNotFound", err)
	}

	for _, id := range []string{"", "  ", "a/b", "x?y"} {
		if _, err := f.svc.GetProperty(ctx, id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("GetProperty(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestLead_Validate(t *testing.T) {
	tests := []struct {
		name    string
		lead    Lead
		wantErr bool
	}{
		{"email only", Lead{Name: "Ana", Email: "ana@example.com"}, false},
		{"phone only", Lead{Name: "Ana", Phone: "+52 55 1234 5678"}, false},
		{"missing name", Lead{Email: "ana@example.com"}, true},
		{"no contact", Lead{Name: "Ana"}, true},
		{"bad email", Lead{Name: "Ana", Email: "not-an-email"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lead.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLead) {
				t.Errorf("Validate() error = %v, want ErrInvalidLead", err)
			}
		})
	}
}

func TestSubmitLead(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)

	var received map[string]string
	f.mock.SetHandler(EndpointContactRequests, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"successful"}`))
	})

	receipt, err := f.svc.SubmitLead(context.Background(), Lead{
		Name:       "Ana",
		Email:      "ana@example.com",
		PropertyID: "EB-1",
		Message:    "Quiero visitarla",
	})
	if err != nil {
		t.Fatalf("SubmitLead() error = %v", err)
	}
	if receipt.Status != "successful" || receipt.ID == "" {
		t.Errorf("receipt = %+v", receipt)
	}
	if received["source"] != "website" || received["property_id"] != "EB-1" {
		t.Errorf("payload = %v", received)
	}
}

func TestSubmitLead_Errors(t *testing.T) {
	f := newFixture(t, pagination.PolicyBestEffort)
	f.mock.SetResponse(EndpointContactRequests, testutil.NewServerErrorResponse())
	ctx := context.Background()

	if _, err := f.svc.SubmitLead(ctx, Lead{Name: "Ana"}); !errors.Is(err, ErrInvalidLead) {
		t.Errorf("invalid lead error = %v", err)
	}
	if f.mock.GetRequestCount() != 0 {
		t.Error("invalid lead must not reach the provider")
	}

	if _, err := f.svc.SubmitLead(ctx, Lead{Name: "Ana", Phone: "555"}); client.StatusCode(err) != 500 {
		t.Errorf("upstream failure error = %v, want status 500", err)
	}
}
