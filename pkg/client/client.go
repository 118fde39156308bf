// Package client is a Go client for the SMIS REST API.
//
// GET requests are deduplicated: concurrent calls for the same URL and token
// share one round trip, which is aborted when the last of them gives up. Every request is retried on 5xx responses and
// network timeouts; 4xx responses are returned at once as *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/pkg/resilience"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("smis api %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("smis api %d: %s", e.StatusCode, msg)
}

// Transient reports whether retrying may help.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == status
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryConfig
	group      resilience.Group
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.IsTransient == nil {
		c.retry.IsTransient = isTransient
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Retrying SMIS request")
		}
	}
	return c
}

func isTransient(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	return resilience.DefaultClassifier(err)
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Get fetches path and decodes the envelope data into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.url(path, query)
	token := c.currentToken()
	key := token + " " + u

	// The shared fetch is aborted once every caller waiting on key is gone.
	data, _, err := resilience.DoContext(ctx, &c.group, key, func(shared context.Context) (json.RawMessage, error) {
		return resilience.RetryValue(shared, c.retry, func(rctx context.Context) (json.RawMessage, error) {
			return c.roundTrip(rctx, http.MethodGet, u, token, nil)
		})
	})
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

// Do sends a request with an optional JSON body. It is retried on 5xx like
// Get but never deduplicated.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	u := c.url(path, nil)
	token := c.currentToken()

	data, err := resilience.RetryValue(ctx, c.retry, func(rctx context.Context) (json.RawMessage, error) {
		return c.roundTrip(rctx, method, u, token, payload)
	})
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) roundTrip(ctx context.Context, method, u, token string, payload []byte) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		} else if decodeErr == nil {
			apiErr.Message = env.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode response: %w", decodeErr))
	}
	return env.Data, nil
}

func decodeData(data json.RawMessage, out interface{}) error {
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
