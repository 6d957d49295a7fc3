package wgapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// APIError is returned for non-2xx responses and for JSON envelopes reporting an error.
type APIError struct {
	Source  string
	Status  int
	Code    int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	b.WriteString(" api error")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status=%d", e.Status)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " code=%d", e.Code)
	}
	if e.Message != "" {
		b.WriteString(" message=" + e.Message)
	}
	if e.Field != "" {
		b.WriteString(" field=" + e.Field)
	}
	return b.String()
}

// retryable reports whether another attempt may succeed.
func (e *APIError) retryable() bool {
	switch e.Status {
	case 429, 500, 502, 503, 504:
		return true
	}
	// Wargaming REQUEST_LIMIT_EXCEEDED and SOURCE_NOT_AVAILABLE
	return e.Code == 407 || e.Code == 504
}

// decodeFunc checks the body and fills out; it returns *APIError for envelope errors.
type decodeFunc func(body []byte) error

// Client is a fasthttp JSON GET client with bounded retries shared by all API wrappers.
type Client struct {
	http   *fasthttp.Client
	logger *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
	userAgent      string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDial replaces the dialer; tests use it with in-memory listeners.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &fasthttp.Client{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 16,
		},
		logger:         zap.NewNop(),
		defaultTimeout: 15 * time.Second,
		retryMax:       3,
		userAgent:      "wot-clan-bot/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func buildURL(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetBody performs a GET and returns the raw body of a 2xx response.
func (c *Client) GetBody(ctx context.Context, source, rawURL string) ([]byte, error) {
	var out []byte
	err := c.get(ctx, source, rawURL, func(body []byte) error {
		out = append([]byte(nil), body...)
		return nil
	})
	return out, err
}

func (c *Client) getJSON(ctx context.Context, source, rawURL string, out any) error {
	return c.get(ctx, source, rawURL, func(body []byte) error {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", source, err)
		}
		return nil
	})
}

func (c *Client) get(ctx context.Context, source, rawURL string, decode decodeFunc) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(rawURL)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	req.Header.SetUserAgent(c.userAgent)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, backoffDuration(attempt-1)); err != nil {
				return lastErr
			}
		}
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("%s request failed: %w", source, err)
			c.logger.Debug("api_retry", zap.String("source", source), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := &APIError{Source: source, Status: status, Message: truncate(string(resp.Body()), 256)}
			if !apiErr.retryable() {
				return apiErr
			}
			lastErr = apiErr
			c.logger.Debug("api_retry", zap.String("source", source), zap.Int("attempt", attempt), zap.Int("status", status))
			continue
		}

		err := decode(resp.Body())
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.retryable() {
			lastErr = err
			continue
		}
		return err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
