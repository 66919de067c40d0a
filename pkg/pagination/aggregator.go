package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Policy selects how a failure after the first page is reported.
type Policy string

const (
	// PolicyBestEffort returns the items gathered so far as success.
	PolicyBestEffort Policy = "best_effort"

	// PolicyFailFast returns the partial result together with ErrIncomplete.
	PolicyFailFast Policy = "fail_fast"
)

// Reason is why an aggregation stopped.
type Reason string

const (
	ReasonExhausted  Reason = "exhausted"
	ReasonPageFailed Reason = "page_failed"
	ReasonCeiling    Reason = "ceiling"
	ReasonBudget     Reason = "budget"
	ReasonCancelled  Reason = "cancelled"
)

// Config holds aggregator configuration.
type Config struct {
	// MaxPages is the hard ceiling on page requests per aggregation.
	MaxPages int

	// MaxPageSize clamps the requested page size.
	MaxPageSize int

	// DefaultPageSize is used when a query does not set one.
	DefaultPageSize int

	// PageTimeout bounds a single page fetch.
	PageTimeout time.Duration

	// Budget bounds the whole aggregation.
	Budget time.Duration

	// Policy selects best-effort or fail-fast reporting of partial results.
	Policy Policy

	// Strategies is the next-page resolution chain (default: DefaultStrategies).
	Strategies []Strategy
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages:        200,
		MaxPageSize:     100,
		DefaultPageSize: 20,
		PageTimeout:     10 * time.Second,
		Budget:          2 * time.Minute,
		Policy:          PolicyBestEffort,
		Strategies:      DefaultStrategies(),
	}
}

// PageFetcher fetches a single page and returns its raw body.
// Implementations return an error for transport failures and non-success statuses.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) ([]byte, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, req PageRequest) ([]byte, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, req PageRequest) ([]byte, error) {
	return f(ctx, req)
}

// Query describes a listing to drain.
type Query struct {
	// Endpoint is the listing path, e.g. "/v1/properties".
	Endpoint string

	// PageSize is the requested page size; clamped to Config.MaxPageSize.
	PageSize int

	// Params are replayed on every numbered page request.
	Params url.Values

	// ItemsKey is the envelope key holding items (default "content").
	ItemsKey string

	// PageParam and LimitParam name the paging query parameters
	// (default "page" and "limit").
	PageParam  string
	LimitParam string
}

func (q Query) pageRequest(page, size int) PageRequest {
	values := url.Values{}
	for k, v := range q.Params {
		values[k] = append([]string(nil), v...)
	}

	pageParam, limitParam := q.PageParam, q.LimitParam
	if pageParam == "" {
		pageParam = "page"
	}
	if limitParam == "" {
		limitParam = "limit"
	}
	values.Set(pageParam, strconv.Itoa(page))
	values.Set(limitParam, strconv.Itoa(size))

	return PageRequest{
		Endpoint: q.Endpoint,
		Query:    values,
		Page:     page,
	}
}

// Result is the outcome of an aggregation.
type Result struct {
	// Items in upstream order across all fetched pages.
	Items []json.RawMessage

	// Pages is the number of page requests issued.
	Pages int

	// PageSize is the clamped page size that was sent upstream.
	PageSize int

	// Reason is why the aggregation stopped.
	Reason Reason

	// Truncated is true when the listing stopped before its end.
	Truncated bool

	// Err is the page error that stopped a truncated aggregation, if any.
	Err error
}

// Aggregator drains paginated endpoints.
type Aggregator struct {
	fetcher PageFetcher
	config  Config
}

// NewAggregator creates a new aggregator.
func NewAggregator(fetcher PageFetcher, config Config) *Aggregator {
	if config.MaxPages <= 0 {
		config.MaxPages = 200
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 100
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 20
	}
	if config.DefaultPageSize > config.MaxPageSize {
		config.DefaultPageSize = config.MaxPageSize
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 10 * time.Second
	}
	if config.Budget <= 0 {
		config.Budget = 2 * time.Minute
	}
	if config.Policy == "" {
		config.Policy = PolicyBestEffort
	}
	if len(config.Strategies) == 0 {
		config.Strategies = DefaultStrategies()
	}

	return &Aggregator{
		fetcher: fetcher,
		config:  config,
	}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config {
	return a.config
}

// PageSize returns the page size a query will be sent with.
func (a *Aggregator) PageSize(requested int) int {
	if requested <= 0 {
		return a.config.DefaultPageSize
	}
	if requested > a.config.MaxPageSize {
		return a.config.MaxPageSize
	}
	return requested
}

// Aggregate fetches every page of q and returns the concatenated items.
//
// It returns ErrUnavailable when the first page fails, unless ctx itself was
// cancelled, in which case the context error is returned. Later failures, the
// page ceiling and the budget stop the run with a truncated result; under
// PolicyFailFast the result is accompanied by ErrIncomplete.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*Result, error) {
	if q.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidQuery)
	}

	if err := ctx.Err(); err != nil {
		aggregationsTotal.WithLabelValues(q.Endpoint, string(ReasonCancelled)).Inc()
		return nil, fmt.Errorf("aggregation cancelled: %w", err)
	}

	start := time.Now()
	logger := log.With().
		Str("component", "aggregator").
		Str("run_id", uuid.NewString()).
		Str("endpoint", q.Endpoint).
		Logger()

	budgetCtx, cancel := context.WithTimeout(ctx, a.config.Budget)
	defer cancel()

	pageSize := a.PageSize(q.PageSize)
	result := &Result{
		Items:    make([]json.RawMessage, 0, pageSize),
		PageSize: pageSize,
	}
	cursor := &Cursor{PageSize: pageSize, CurrentPage: 1}
	req := q.pageRequest(1, pageSize)

	logger.Debug().Int("page_size", pageSize).Msg("Starting aggregation")

	for {
		if result.Pages >= a.config.MaxPages {
			result.Reason = ReasonCeiling
			logger.Error().
				Int("max_pages", a.config.MaxPages).
				Int("items", len(result.Items)).
				Msg("Page ceiling reached - stopping aggregation")
			break
		}

		if budgetCtx.Err() != nil && result.Pages > 0 {
			result.Reason = a.stopReason(ctx)
			result.Err = budgetCtx.Err()
			break
		}

		body, err := a.fetch(budgetCtx, req)
		result.Pages++
		pagesFetchedTotal.WithLabelValues(q.Endpoint).Inc()

		if err != nil {
			if result.Pages == 1 && ctx.Err() != nil {
				aggregationsTotal.WithLabelValues(q.Endpoint, string(ReasonCancelled)).Inc()
				logger.Debug().Err(err).Msg("Cancelled before the first page completed")
				return nil, fmt.Errorf("aggregation cancelled: %w", ctx.Err())
			}
			if result.Pages == 1 {
				aggregationsTotal.WithLabelValues(q.Endpoint, "unavailable").Inc()
				logger.Warn().Err(err).Msg("First page failed - listing unavailable")
				return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, q.Endpoint, err)
			}

			result.Reason = ReasonPageFailed
			if budgetCtx.Err() != nil {
				result.Reason = a.stopReason(ctx)
			}
			result.Err = err
			logger.Warn().
				Err(err).
				Int("page", req.Page).
				Int("pages_fetched", result.Pages-1).
				Int("items", len(result.Items)).
				Msg("Page fetch failed - returning partial results")
			break
		}

		page := ParsePage(body, q.ItemsKey)
		if page.Malformed {
			logger.Warn().Str("target", req.Target()).Msg("Malformed page body - treating as empty")
		}
		result.Items = append(result.Items, page.Items...)

		decision, strategy := resolve(a.config.Strategies, cursor, page)
		logger.Debug().
			Int("page", cursor.CurrentPage).
			Int("page_items", len(page.Items)).
			Str("strategy", strategy).
			Bool("stop", decision.Stop).
			Msg("Page resolved")

		if decision.Stop {
			result.Reason = ReasonExhausted
			break
		}

		if decision.NextURL != "" {
			req = PageRequest{Endpoint: q.Endpoint, URL: resolveRef(req, decision.NextURL)}
			cursor.CurrentPage = 0
		} else {
			req = q.pageRequest(decision.NextPage, pageSize)
			cursor.CurrentPage = decision.NextPage
		}
	}

	result.Truncated = result.Reason != ReasonExhausted

	aggregationsTotal.WithLabelValues(q.Endpoint, string(result.Reason)).Inc()
	aggregatedItems.WithLabelValues(q.Endpoint).Observe(float64(len(result.Items)))
	aggregationDuration.WithLabelValues(q.Endpoint).Observe(time.Since(start).Seconds())

	level := zerolog.InfoLevel
	if result.Truncated {
		level = zerolog.WarnLevel
	}
	logger.WithLevel(level).
		Int("pages", result.Pages).
		Int("items", len(result.Items)).
		Str("reason", string(result.Reason)).
		Bool("truncated", result.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")

	if result.Reason == ReasonCancelled {
		return result, fmt.Errorf("aggregation cancelled: %w", ctx.Err())
	}
	if result.Truncated && a.config.Policy == PolicyFailFast {
		return result, &IncompleteError{Reason: result.Reason, Pages: result.Pages, Err: result.Err}
	}
	return result, nil
}

// fetch issues one page request bounded by the per-page timeout.
func (a *Aggregator) fetch(ctx context.Context, req PageRequest) ([]byte, error) {
	pageCtx, cancel := context.WithTimeout(ctx, a.config.PageTimeout)
	defer cancel()
	return a.fetcher.FetchPage(pageCtx, req)
}

// stopReason tells a caller cancellation apart from budget exhaustion.
func (a *Aggregator) stopReason(parent context.Context) Reason {
	if parent.Err() != nil {
		return ReasonCancelled
	}
	return ReasonBudget
}

// IncompleteError reports a truncated aggregation under PolicyFailFast.
type IncompleteError struct {
	Reason Reason
	Pages  int
	Err    error
}

// Error implements the error interface.
func (e *IncompleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: stopped by %s after %d pages: %v", ErrIncomplete, e.Reason, e.Pages, e.Err)
	}
	return fmt.Sprintf("%s: stopped by %s after %d pages", ErrIncomplete, e.Reason, e.Pages)
}

// Is matches ErrIncomplete.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// Unwrap returns the page error, if any.
func (e *IncompleteError) Unwrap() error {
	return e.Err
}

// Decode unmarshals aggregated items into T, preserving order.
func Decode[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
