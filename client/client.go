// Package client is the typed HTTP client for the storefront REST backend.
// Every request carries the current bearer token when a session is active,
// is bounded by a fixed timeout, and maps failures into the APIError
// taxonomy. A 401-equivalent response from any endpoint fires the
// registered auth-expired hook exactly once per token; it is the single
// signal the session store treats as "session invalid".
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each remote call when none is configured.
const DefaultTimeout = 10 * time.Second

// TokenSource supplies the current bearer token, or "" when anonymous.
type TokenSource func() string

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string

	// Timeout bounds each request (default: DefaultTimeout).
	Timeout time.Duration

	// TokenSource supplies the bearer token per request. Optional.
	TokenSource TokenSource

	// HTTPClient overrides the underlying transport. Optional.
	HTTPClient *http.Client
}

// Client talks to the storefront backend.
type Client struct {
	baseURL string
	timeout time.Duration
	httpc   *http.Client
	tokens  TokenSource

	mu            sync.Mutex
	onAuthExpired func()
	expiredTokens map[string]struct{} // tokens already reported as expired
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("client: base URL is empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}

	return &Client{
		baseURL:       base,
		timeout:       timeout,
		httpc:         httpc,
		tokens:        cfg.TokenSource,
		expiredTokens: make(map[string]struct{}),
	}, nil
}

// OnAuthExpired registers the hook fired when any endpoint reports a
// 401-equivalent response. The hook runs at most once per token, so a
// burst of concurrent calls failing on the same stale token triggers a
// single global teardown.
func (c *Client) OnAuthExpired(fn func()) {
	c.mu.Lock()
	c.onAuthExpired = fn
	c.mu.Unlock()
}

// do performs one HTTP round trip. A non-nil in is JSON-encoded as the
// request body; a non-nil out receives the decoded success response.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return newAPIError(CodeDecode, fmt.Sprintf("encode request for %s", path), false, err)
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return newAPIError(CodeNetwork, fmt.Sprintf("build request for %s", path), false, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var token string
	if c.tokens != nil {
		token = c.tokens()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// A timeout is reported as a network failure: roll back exactly
		// as on any other transport error.
		if errors.Is(err, context.DeadlineExceeded) {
			return newAPIError(CodeNetwork, fmt.Sprintf("%s %s timed out", method, path), true, err)
		}
		return newAPIError(CodeNetwork, fmt.Sprintf("%s %s failed", method, path), true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return newAPIError(CodeNetwork, fmt.Sprintf("read response from %s", path), true, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.errorFromResponse(resp.StatusCode, respBody, token)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return newAPIError(CodeDecode, fmt.Sprintf("decode response from %s", path), false, err)
	}
	return nil
}

// errorPayload is the backend's error body shape.
type errorPayload struct {
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// errorFromResponse maps a non-2xx response into the error taxonomy.
func (c *Client) errorFromResponse(status int, body []byte, token string) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload) // body may not be JSON

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		c.fireAuthExpired(token)
		return &APIError{Code: CodeAuthExpired, Message: message, Status: status}

	case status == http.StatusNotFound:
		return &APIError{Code: CodeNotFound, Message: message, Status: status}

	case status >= http.StatusInternalServerError:
		return &APIError{Code: CodeServer, Message: message, Status: status, Retryable: true}

	default:
		apiErr := &APIError{Code: CodeValidation, Message: message, Status: status}
		if len(payload.Errors) > 0 {
			apiErr.Fields = make(map[string]string, len(payload.Errors))
			for _, fe := range payload.Errors {
				apiErr.Fields[fe.Field] = fe.Message
			}
		}
		return apiErr
	}
}

// fireAuthExpired runs the auth-expired hook once per token.
func (c *Client) fireAuthExpired(token string) {
	c.mu.Lock()
	if token != "" {
		if _, seen := c.expiredTokens[token]; seen {
			c.mu.Unlock()
			return
		}
		c.expiredTokens[token] = struct{}{}
	}
	fn := c.onAuthExpired
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// get performs a GET with bounded retries; reads are idempotent so a
// transient transport failure is retried with linear backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return withRetry(ctx, defaultRetryPolicy, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, path, nil, out)
	})
}
