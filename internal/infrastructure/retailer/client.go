package retailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	maxAttempts  = 3
	maxErrorBody = 512
	userAgent    = "PriceLens/1.0"
)

// ClientConfig configures the shared retailer HTTP client
type ClientConfig struct {
	Retailer  string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
	// Cookies keeps a cookie jar across requests, for APIs that bootstrap a session
	Cookies bool
}

// Client is a rate-limited JSON HTTP client with retries, shared by all retailer adapters
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *logrus.Entry
	backoff     func(attempt int) time.Duration
}

// NewClient creates a retailer API client
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Cookies {
		// cookiejar.New never fails with nil options
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}

	return &Client{
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger: logger.WithFields(logrus.Fields{
			"component": "retailer.client",
			"retailer":  cfg.Retailer,
		}),
		backoff: exponentialBackoff,
	}
}

// exponentialBackoff returns the wait before retrying after the given attempt: 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return 500 * time.Millisecond << (attempt - 1)
}

// Visit issues a GET and discards the body; with cookies enabled it primes the session
func (c *Client) Visit(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodGet, url, nil)
	return err
}

// GetJSON fetches url and decodes the JSON response into out
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// PostJSON posts payload as JSON to url and decodes the JSON response into out
func (c *Client) PostJSON(ctx context.Context, url string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, url, data)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func decode(body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do executes a request with rate limiting, retrying transport errors, 429 and 5xx.
// 404 maps to domain.ErrNotFound and other 4xx fail immediately.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithError(err).WithField("attempt", attempt).Debug("request failed")
			lastErr = fmt.Errorf("%w: %v", domain.ErrRetailerAPI, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrRetailerAPI, err)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s %s: %s", domain.ErrNotFound, method, url, truncate(body))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"status":  resp.StatusCode,
				"url":     url,
			}).Debug("retryable response")
			lastErr = fmt.Errorf("%w: status %d", domain.ErrRetailerAPI, resp.StatusCode)
		default:
			return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrRetailerAPI, resp.StatusCode, truncate(body))
		}
	}

	c.logger.WithField("url", url).Warn("all retries failed")
	return nil, lastErr
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
