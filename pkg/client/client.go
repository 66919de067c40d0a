// Package client provides the upstream listing API client with rate limiting,
// retries, circuit breaking and error classification.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/listing-sync/pkg/pagination"
	"github.com/Sternrassler/listing-sync/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Prometheus metrics for upstream client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (except 429).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultBaseURL is the EasyBroker API root.
const DefaultBaseURL = "https://api.easybroker.com"

// Client is the upstream listing API client.
type Client struct {
	rest    *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	tracker *ratelimit.Tracker
	config  Config
	logger  zerolog.Logger
}

var _ pagination.PageFetcher = (*Client)(nil)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the upstream API root (absolute http/https URL).
	BaseURL string

	// APIKey is sent on every request in AuthHeader (REQUIRED).
	APIKey string

	// AuthHeader names the credential header (default "X-Authorization").
	AuthHeader string

	// UserAgent header (REQUIRED).
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Local pacing: requests per second and burst.
	RateLimit float64
	Burst     int

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Circuit breaker: consecutive failures to trip and open-state cooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// Redis enables the shared upstream quota tracker (optional).
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		APIKey:          apiKey,
		AuthHeader:      "X-Authorization",
		UserAgent:       "listing-sync/0.1.0",
		Timeout:         30 * time.Second,
		RateLimit:       20,
		Burst:           5,
		MaxRetries:      3,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      30 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// New creates a new upstream client.
// It fails with ErrMissingCredentials before any network activity when no API key is set.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("rate_limit must be > 0 (got %v)", cfg.RateLimit)
	}

	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "X-Authorization"
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	logger := log.With().Str("component", "upstream-client").Logger()

	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader(cfg.AuthHeader, cfg.APIKey).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetLogger(restyLogger{logger: logger})

	c := &Client{
		rest:    rest,
		limiter: ratelimit.NewLimiter(cfg.RateLimit, cfg.Burst),
		breaker: newBreaker("upstream", cfg.BreakerFailures, cfg.BreakerCooldown, logger),
		config:  cfg,
		logger:  logger,
	}
	if cfg.Redis != nil {
		c.tracker = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return c, nil
}

// FetchPage fetches one listing page. A verbatim next-page URL wins over
// the endpoint and query. Non-success statuses are returned as *APIError.
func (c *Client) FetchPage(ctx context.Context, req pagination.PageRequest) ([]byte, error) {
	target, query := req.URL, url.Values(nil)
	if target == "" {
		target, query = req.Endpoint, req.Query
	}

	resp, err := c.do(ctx, http.MethodGet, target, query, nil, true)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Get performs a GET request against an upstream endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, query, nil, true)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// PostJSON sends payload as JSON. POSTs are not retried.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, endpoint, nil, payload, false)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// do performs a request with quota gating, pacing, retries and circuit breaking.
func (c *Client) do(ctx context.Context, method, target string, query url.Values, body any, retry bool) (*resty.Response, error) {
	endpoint := metricEndpoint(target)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Shared quota
	if c.tracker != nil {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, ErrRateLimited
		}
	}

	retryCfg := c.retryConfig()
	if !retry {
		retryCfg.MaxAttempts = 1
	}

	// Step 2: Execute inside the breaker, retrying transient failures
	var resp *resty.Response
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, retryWithBackoff(ctx, retryCfg, func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait: %w", err)
			}

			req := c.rest.R().SetContext(ctx)
			if len(query) > 0 {
				req.SetQueryParamsFromValues(query)
			}
			if body != nil {
				req.SetHeader("Content-Type", "application/json").SetBody(body)
			}

			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("method", method).
				Msg("Executing upstream request")

			r, reqErr := req.Execute(method, target)
			if reqErr != nil {
				errClass := c.classifyError(0, reqErr)
				errorsTotal.WithLabelValues(string(errClass)).Inc()
				requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
				c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
				return reqErr
			}

			c.trackHeaders(ctx, r.Header())

			if r.StatusCode() >= 400 {
				apiErr := c.apiError(r)
				errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
				requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode())).Inc()
				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("status", r.StatusCode()).
					Str("error_class", string(apiErr.ErrorClass)).
					Msg("Upstream request error")
				return apiErr
			}

			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode())).Inc()
			resp = r
			return nil
		}, classOf)
	})
	if err != nil {
		return nil, breakerError(err)
	}

	return resp, nil
}

func (c *Client) retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       c.config.MaxRetries,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        c.config.MaxBackoff,
		BackoffMultiplier: 2.0,
	}
}

func (c *Client) trackHeaders(ctx context.Context, headers http.Header) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.UpdateFromHeaders(ctx, headers); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}
}

func (c *Client) apiError(r *resty.Response) *APIError {
	apiErr := &APIError{
		StatusCode: r.StatusCode(),
		ErrorClass: c.classifyError(r.StatusCode(), nil),
		Message:    r.Status(),
	}
	if s := r.Header().Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(status int, err error) ErrorClass {
	var class ErrorClass
	switch {
	case err != nil:
		class = ErrorClassNetwork
	case status == http.StatusTooManyRequests:
		class = ErrorClassRateLimit
	case status >= 400 && status < 500:
		class = ErrorClassClient
	case status >= 500:
		class = ErrorClassServer
	default:
		return ""
	}
	c.logger.Debug().Str("class", string(class)).Msg("Error classified")
	return class
}

// BreakerState reports the upstream circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.rest.GetClient().CloseIdleConnections()
	return nil
}

// metricEndpoint reduces a target to its path to bound label cardinality.
func metricEndpoint(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Path == "" {
		return target
	}
	return u.Path
}

// restyLogger routes resty's internal logging through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
