package easybroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/listing-sync/pkg/cache"
	"github.com/Sternrassler/listing-sync/pkg/client"
	"github.com/Sternrassler/listing-sync/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// truncatedTTL caps how long an incomplete snapshot is served.
const truncatedTTL = 30 * time.Second

// Upstream is the provider transport used by Service.
type Upstream interface {
	pagination.PageFetcher
	Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error)
	PostJSON(ctx context.Context, endpoint string, payload any) ([]byte, error)
}

var _ Upstream = (*client.Client)(nil)

// Config holds Service dependencies and tuning.
type Config struct {
	// Aggregator limits; MaxPageSize is capped at the provider maximum.
	Aggregator pagination.Config

	// Cache stores aggregated snapshots (nil disables caching).
	Cache cache.Store

	// CacheTTL is the snapshot lifetime (default cache.DefaultTTL).
	CacheTTL time.Duration

	// Clock stamps cache entries (default wall clock).
	Clock cache.Clock
}

// ListOptions tunes a single listing call.
type ListOptions struct {
	// PageSize requested upstream; clamped to the provider maximum.
	PageSize int

	// Refresh bypasses the cached snapshot and stores a new one.
	Refresh bool
}

// Service serves the EasyBroker catalog.
type Service struct {
	upstream   Upstream
	aggregator *pagination.Aggregator
	cache      cache.Store
	ttl        time.Duration
	clock      cache.Clock
	logger     zerolog.Logger
}

// NewService creates a catalog service over upstream.
func NewService(upstream Upstream, cfg Config) *Service {
	aggCfg := cfg.Aggregator
	if aggCfg.MaxPageSize <= 0 || aggCfg.MaxPageSize > MaxPageSize {
		aggCfg.MaxPageSize = MaxPageSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = cache.SystemClock{}
	}

	return &Service{
		upstream:   upstream,
		aggregator: pagination.NewAggregator(upstream, aggCfg),
		cache:      cfg.Cache,
		ttl:        cfg.CacheTTL,
		clock:      cfg.Clock,
		logger:     log.With().Str("component", "easybroker").Logger(),
	}
}

// Aggregator returns the underlying aggregator.
func (s *Service) Aggregator() *pagination.Aggregator {
	return s.aggregator
}

// ListProperties returns every property matching filter.
func (s *Service) ListProperties(ctx context.Context, filter PropertyFilter, opts ListOptions) (*Listing, error) {
	return s.List(ctx, pagination.Query{
		Endpoint: EndpointProperties,
		Params:   filter.Values(),
	}, opts)
}

// ListContacts returns every CRM contact.
func (s *Service) ListContacts(ctx context.Context, opts ListOptions) (*Listing, error) {
	return s.List(ctx, pagination.Query{Endpoint: EndpointContacts}, opts)
}

// ListContactRequests returns every recorded inquiry.
func (s *Service) ListContactRequests(ctx context.Context, opts ListOptions) (*Listing, error) {
	return s.List(ctx, pagination.Query{Endpoint: EndpointContactRequests}, opts)
}

// List aggregates q, serving and refreshing the cached snapshot.
//
// Errors from the aggregator pass through unchanged: pagination.ErrUnavailable
// when the first page failed, and under the fail-fast policy the partial
// listing together with pagination.ErrIncomplete.
func (s *Service) List(ctx context.Context, q pagination.Query, opts ListOptions) (*Listing, error) {
	q.PageSize = s.aggregator.PageSize(opts.PageSize)
	key := cache.Key{Endpoint: q.Endpoint, Query: q.Params, PageSize: q.PageSize}

	if s.cache != nil && !opts.Refresh {
		if listing, ok := s.cached(ctx, key); ok {
			return listing, nil
		}
	}

	res, err := s.aggregator.Aggregate(ctx, q)
	if res == nil {
		return nil, err
	}

	listing := &Listing{
		Items:     res.Items,
		Pages:     res.Pages,
		Reason:    res.Reason,
		Truncated: res.Truncated,
	}
	if err != nil {
		return listing, err
	}

	s.store(ctx, key, listing)
	return listing, nil
}

func (s *Service) cached(ctx context.Context, key cache.Key) (*Listing, bool) {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed")
		}
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(entry.Data, &items); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Discarding undecodable snapshot")
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}

	s.logger.Debug().Str("key", key.String()).Int("items", len(items)).Msg("Serving cached snapshot")
	return &Listing{
		Items:     items,
		Pages:     entry.Pages,
		Truncated: entry.Truncated,
		Reason:    pagination.Reason(entry.Reason),
		FromCache: true,
		ETag:      entry.ETag,
		CachedAt:  entry.CachedAt,
		Expires:   entry.Expires,
	}, true
}

// store caches listing and stamps it with the entry's validators.
func (s *Service) store(ctx context.Context, key cache.Key, listing *Listing) {
	data, err := json.Marshal(listing.ItemsView().Items)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode snapshot")
		return
	}

	ttl := s.ttl
	if listing.Truncated && ttl > truncatedTTL {
		ttl = truncatedTTL
	}
	entry := cache.NewEntry(data, listing.Pages, listing.Truncated, s.clock.Now(), ttl)
	entry.Reason = string(listing.Reason)
	listing.ETag = entry.ETag
	listing.CachedAt = entry.CachedAt
	listing.Expires = entry.Expires

	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
}

// GetProperty returns the provider's detail document for one property.
func (s *Service) GetProperty(ctx context.Context, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	endpoint := EndpointProperties + "/" + url.PathEscape(id)
	key := cache.Key{Endpoint: endpoint}

	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			return entry.Data, nil
		}
	}

	body, err := s.upstream.Get(ctx, endpoint, nil)
	if err != nil {
		if client.StatusCode(err) == 404 {
			return nil, fmt.Errorf("%w: property %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("get property %s: upstream returned invalid json", id)
	}

	if s.cache != nil {
		entry := cache.NewEntry(body, 1, false, s.clock.Now(), s.ttl)
		if err := s.cache.Set(ctx, key, entry); err != nil {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
		}
	}
	return body, nil
}

// SubmitLead forwards a website inquiry as a contact request.
func (s *Service) SubmitLead(ctx context.Context, lead Lead) (*LeadReceipt, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}
	if lead.Source == "" {
		lead.Source = "website"
	}

	receipt := &LeadReceipt{ID: uuid.NewString()}
	body, err := s.upstream.PostJSON(ctx, EndpointContactRequests, lead)
	if err != nil {
		s.logger.Error().Err(err).Str("lead_id", receipt.ID).Msg("Lead submission failed")
		return nil, fmt.Errorf("submit lead: %w", err)
	}

	var ack struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &ack); err != nil || ack.Status == "" {
		ack.Status = "accepted"
	}
	receipt.Status = ack.Status

	s.logger.Info().
		Str("lead_id", receipt.ID).
		Str("property_id", lead.PropertyID).
		Str("status", receipt.Status).
		Msg("Lead forwarded")
	return receipt, nil
}

// Validate checks that a lead can be acted on.
func (l Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLead)
	}
	if l.Email == "" && l.Phone == "" {
		return fmt.Errorf("%w: email or phone is required", ErrInvalidLead)
	}
	if l.Email != "" {
		if _, err := mail.ParseAddress(l.Email); err != nil {
			return fmt.Errorf("%w: email: %v", ErrInvalidLead, err)
		}
	}
	return nil
}
