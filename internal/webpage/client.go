package webpage

import (
	"bytes"
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"

	"github.com/recipescrape/recipescrape/internal/circuit"
	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/retry"
	"github.com/recipescrape/recipescrape/pkg/types"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 16 << 20

// Config controls outbound requests.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Config

	// CircuitBreaker guards each host; nil disables breaking.
	CircuitBreaker *circuit.Config
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	cb := circuit.DefaultConfig()
	return Config{
		Timeout:        30 * time.Second,
		UserAgent:      "recipescrape/1.0",
		Retry:          retry.DefaultConfig(),
		CircuitBreaker: &cb,
	}
}

// Client fetches HTML pages and JSON APIs.
type Client struct {
	http      *http.Client
	userAgent string
	retryer   *retry.Retryer
	breakers  *circuit.Manager
	recorder  types.HTTPRecorder
	logger    *utils.StructuredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRecorder reports every request attempt to recorder.
func WithRecorder(recorder types.HTTPRecorder) Option {
	return func(c *Client) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *utils.StructuredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithComponent("webpage")
		}
	}
}

// NewClient creates a client from config.
func NewClient(config Config, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "recipescrape/1.0"
	}

	c := &Client{
		http:      &http.Client{Timeout: config.Timeout},
		userAgent: config.UserAgent,
		recorder:  types.NoopRecorder{},
		logger:    utils.NopLogger(),
	}

	retryCfg := config.Retry
	onRetry := retryCfg.OnRetry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Debug("Retrying request", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	if config.CircuitBreaker != nil {
		c.breakers = circuit.NewManager(*config.CircuitBreaker)
	}

	for _, opt := range opts {
		opt(c)
	}
	c.retryer = retry.New(retryCfg)

	return c
}

// Breakers returns the per-host breaker stats, or nil when breaking is disabled.
func (c *Client) Breakers() []circuit.Stats {
	if c.breakers == nil {
		return nil
	}
	return c.breakers.Stats()
}

// GetDocument fetches rawURL and parses the body as HTML.
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*html.Node, error) {
	body, err := c.fetch(ctx, http.MethodGet, rawURL, "", nil, "text/html")
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeParseFailed, "failed to parse HTML").
			WithComponent("webpage").
			WithContext("url", rawURL)
	}
	return doc, nil
}

// GetJSON performs an authenticated GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL, token string, out interface{}) error {
	body, err := c.fetch(ctx, http.MethodGet, rawURL, token, nil, "application/json")
	if err != nil {
		return err
	}
	return decodeJSON(rawURL, body, out)
}

// PostJSON performs an authenticated POST of payload and decodes the response into out.
// out may be nil. POSTs are sent once; only GETs are retried.
func (c *Client) PostJSON(ctx context.Context, rawURL, token string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidValue, "failed to encode request body").
			WithComponent("webpage").
			WithContext("url", rawURL)
	}

	body, err := c.fetch(ctx, http.MethodPost, rawURL, token, data, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeJSON(rawURL, body, out)
}

func decodeJSON(rawURL string, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeParseFailed, "failed to decode JSON response").
			WithComponent("webpage").
			WithContext("url", rawURL)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, method, rawURL, token string, payload []byte, accept string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.NewError(errors.ErrCodeInvalidValue, "invalid request URL").
			WithComponent("webpage").
			WithContext("url", rawURL)
	}

	retryer := c.retryer
	if method != http.MethodGet {
		retryer = retryer.WithMaxAttempts(1)
	}

	var body []byte
	err = retryer.DoWithContext(ctx, func(ctx context.Context) error {
		attempt := func(ctx context.Context) error {
			var err error
			body, err = c.do(ctx, method, u, token, payload, accept)
			return err
		}
		if c.breakers == nil {
			return attempt(ctx)
		}
		return c.breakers.Execute(ctx, u.Host, attempt)
	})
	return body, err
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, token string, payload []byte, accept string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to build request").
			WithComponent("webpage")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = transportError(err, method, u)
		c.recorder.RecordRequest(u.Host, method, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	duration := time.Since(start)

	if err := statusError(resp, method, u); err != nil {
		c.recorder.RecordRequest(u.Host, method, resp.StatusCode, duration, err)
		return nil, err
	}
	if readErr != nil {
		err := transportError(readErr, method, u)
		c.recorder.RecordRequest(u.Host, method, resp.StatusCode, duration, err)
		return nil, err
	}

	c.recorder.RecordRequest(u.Host, method, resp.StatusCode, duration, nil)
	c.logger.Debug("Fetched", map[string]interface{}{
		"method":   method,
		"url":      u.String(),
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": duration.String(),
	})
	return body, nil
}

func statusError(resp *http.Response, method string, u *url.URL) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	var e *errors.Error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e = errors.Newf(errors.ErrCodeAuthenticationFailed, "%s %s: %s", method, u.Host, resp.Status)
	default:
		e = errors.Newf(errors.ErrCodeHTTPStatus, "%s %s: %s", method, u.Host, resp.Status).
			WithRetryable(code >= 500 || code == http.StatusTooManyRequests)
	}
	return e.WithComponent("webpage").
		WithContext("url", u.String()).
		WithDetail("status", code)
}

func transportError(err error, method string, u *url.URL) error {
	if stderr.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrCodeOperationCanceled, "request canceled").
			WithComponent("webpage").
			WithContext("url", u.String())
	}

	var netErr net.Error
	if stderr.Is(err, context.DeadlineExceeded) || (stderr.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(err, errors.ErrCodeConnectionTimeout, fmt.Sprintf("%s %s timed out", method, u.Host)).
			WithComponent("webpage").
			WithContext("url", u.String())
	}

	return errors.Wrap(err, errors.ErrCodeConnectionFailed, fmt.Sprintf("%s %s failed", method, u.Host)).
		WithComponent("webpage").
		WithContext("url", u.String())
}
