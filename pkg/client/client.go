// Package client provides the marketplace HTTP client: static-token authentication,
// client-side pacing, and exponential-backoff retries on rate-limit responses.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/Sternrassler/marketplace-sync/pkg/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept in APIError.Body.
const maxErrorBody = 64 << 10

// Gate shares rate-limit state between clients. *ratelimit.Tracker implements it.
type Gate interface {
	Wait(ctx context.Context) error
	UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error
}

// Client is the rate-limited marketplace client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	gate       Gate
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the marketplace API, e.g. "https://api.marketplace.example".
	BaseURL string

	// Token is sent verbatim in the Authorization header.
	Token string

	// UserAgent header value.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Pacing; RequestsPerSecond <= 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int

	// Gate is optional; nil disables shared cooldown tracking.
	Gate Gate

	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, token string) Config {
	return Config{
		BaseURL:           baseURL,
		Token:             token,
		UserAgent:         "marketplace-sync/1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		Retry:             DefaultRetryConfig(),
	}
}

// New creates a new marketplace client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Retry = cfg.Retry.withDefaults()

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		limiter:    limiter,
		gate:       cfg.Gate,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// Do performs an HTTP request. 2xx responses are returned to the caller, who must
// close the body. 429 responses are retried with exponential backoff; every other
// failure, transport errors included, is returned without retry.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("Authorization", c.config.Token)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var resp *http.Response

	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) (bool, time.Duration, error) {
		if err := c.pace(ctx); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return false, 0, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		attemptStart := time.Now()
		r, err := c.httpClient.Do(req)
		elapsed := time.Since(attemptStart)

		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Error().
				Err(err).
				Int("attempt", attempt).
				Str("endpoint", req.URL.Path).
				Dur("elapsed", elapsed).
				Msg("Marketplace request failed")
			return false, 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()
		c.logger.Debug().
			Int("attempt", attempt).
			Str("endpoint", req.URL.Path).
			Int("status", r.StatusCode).
			Dur("elapsed", elapsed).
			Msg("Marketplace request attempt")

		if c.gate != nil {
			if err := c.gate.UpdateFromResponse(ctx, r.StatusCode, r.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit state")
			}
		}

		if r.StatusCode >= 200 && r.StatusCode < 300 {
			resp = r
			return false, 0, nil
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
		r.Body.Close()

		class := classifyStatus(r.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		apiErr := &APIError{
			StatusCode: r.StatusCode,
			Class:      class,
			Endpoint:   req.URL.Path,
			Body:       strings.TrimSpace(string(body)),
		}

		var hint time.Duration
		if d, ok := ratelimit.RetryAfter(r.Header, time.Now()); ok {
			hint = d
		}
		return shouldRetry(class), hint, apiErr
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// pace waits for the local token bucket and any shared cooldown.
func (c *Client) pace(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.gate != nil {
		return c.gate.Wait(ctx)
	}
	return nil
}

// Get performs a GET request to an endpoint relative to the base URL.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	u := c.baseURL.JoinPath(endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
