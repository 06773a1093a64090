// Package fetch provides the shared HTTP layer for source adapters: a
// politeness-rate-limited client with bounded retries and exponential
// backoff. A 404 is terminal and never retried; it is how adapters detect
// the end of pagination.
package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

// Defaults for client construction.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultRetries     = 3
	DefaultMinInterval = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client is a rate-limited fetching client shared by the adapters of one
// source. Requests are serialized by the politeness interval, so a single
// Client must not be shared across sources with different intervals.
type Client struct {
	http        *resty.Client
	minInterval time.Duration

	mu       sync.Mutex
	lastDone time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithMinInterval sets the minimum delay between two requests.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		c.minInterval = d
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.http.SetRetryCount(n)
	}
}

// WithBaseURL sets a base URL for relative request paths.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(base)
	}
}

// New creates a fetching client with retry and politeness defaults.
func New(opts ...Option) *Client {
	httpClient := resty.New().
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")

	// Retry on transport errors and 5xx/429, never on 404.
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := r.StatusCode()
		return code == http.StatusTooManyRequests || code >= 500
	})

	c := &Client{
		http:        httpClient,
		minInterval: DefaultMinInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Page fetches url and parses it as an HTML document.
func (c *Client) Page(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &errors.ParseError{URL: url, Message: "invalid html document", Err: err}
	}
	return doc, nil
}

// JSON fetches url with optional query parameters and decodes the response
// body into v.
func (c *Client) JSON(ctx context.Context, url string, params map[string]string, v any) error {
	body, err := c.get(ctx, url, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &errors.ParseError{URL: url, Message: "invalid json response", Err: err}
	}
	return nil
}

// get performs a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, url string, params map[string]string) (string, error) {
	if err := c.waitTurn(ctx); err != nil {
		return "", err
	}

	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &errors.FetchError{URL: url, Attempts: c.http.RetryCount + 1, Err: err}
	}

	if resp.IsError() {
		logging.Ctx(ctx).Warn().
			Str("url", url).
			Int("status", resp.StatusCode()).
			Msg("fetch failed")
		return "", &errors.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Attempts:   resp.Request.Attempt,
		}
	}

	return resp.String(), nil
}

// waitTurn blocks until the politeness interval since the previous request
// has elapsed, or the context is done.
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	next := c.lastDone.Add(c.minInterval)
	if next.Before(now) {
		next = now
	}
	c.lastDone = next
	c.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
