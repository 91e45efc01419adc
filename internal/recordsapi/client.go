// Package recordsapi is the HTTP client for the remote insurance records API.
package recordsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/wecare-insurance/portal/internal/shared"
)

const defaultTimeout = 15 * time.Second

// Observer receives one callback per API round trip.
type Observer interface {
	ObserveAPICall(op, outcome string, elapsed time.Duration)
}

// Client talks JSON to the records API. A Client without a token can only
// log in; use WithToken for authenticated calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	log        *slog.Logger
	observer   Observer
	retryDelay time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver reports call outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithRetryDelay sets the pause before the single GET retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// New builds a client for baseURL. A zero timeout selects 15s.
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("adapter", "recordsapi"),
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client that sends token as bearer credential.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Token returns the bearer token carried by the client.
func (c *Client) Token() string {
	return c.token
}

// envelope is the API's standard mutation response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends a JSON request and decodes a JSON response into out when both the
// body and out are non-empty.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	resp, err := c.send(ctx, op, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &shared.ServerError{Op: op, Message: "invalid JSON response from server"}
	}
	return nil
}

// doEnvelope decodes the data field of an envelope response into out.
func (c *Client) doEnvelope(ctx context.Context, op, method, path string, in, out any) error {
	var env envelope
	if err := c.do(ctx, op, method, path, nil, in, &env); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &shared.ServerError{Op: op, Message: "invalid JSON response from server"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, in any) (*response, error) {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("recordsapi: encode %s: %w", op, err)
		}
		payload = data
	}

	start := time.Now()
	resp, err := c.attempt(ctx, op, method, path, query, payload)
	if c.shouldRetry(ctx, method, resp, err) {
		reason := "network error"
		if err == nil {
			reason = fmt.Sprintf("status %d", resp.status)
		}
		c.log.WarnContext(ctx, "records api retry", slog.String("op", op), slog.String("reason", reason))
		if waitErr := c.wait(ctx); waitErr == nil {
			resp, err = c.attempt(ctx, op, method, path, query, payload)
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		c.observe(op, "network", elapsed)
		c.log.ErrorContext(ctx, "records api call failed", slog.String("op", op), slog.Any("error", err))
		return nil, &shared.NetworkError{Op: op, Err: err}
	}
	if resp.status < 200 || resp.status > 299 {
		c.observe(op, "server", elapsed)
		serr := &shared.ServerError{Op: op, Status: resp.status, Message: errorMessage(resp.body)}
		c.log.WarnContext(ctx, "records api call failed", slog.String("op", op), slog.Int("status", resp.status), slog.String("message", serr.Message))
		return nil, serr
	}
	c.observe(op, "ok", elapsed)
	c.log.DebugContext(ctx, "records api call", slog.String("op", op), slog.Int("status", resp.status), slog.Duration("elapsed", elapsed))
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, op, method, path string, query url.Values, payload []byte) (*response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

// shouldRetry allows one retry for idempotent reads on network errors or 5xx.
func (c *Client) shouldRetry(ctx context.Context, method string, resp *response, err error) bool {
	if method != http.MethodGet || ctx.Err() != nil {
		return false
	}
	return err != nil || (resp != nil && resp.status >= 500)
}

func (c *Client) wait(ctx context.Context) error {
	if c.retryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) observe(op, outcome string, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveAPICall(op, outcome, elapsed)
}

// errorMessage extracts the error or message field from a failure body.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
		return ""
	}
	text := string(trimmed)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// IsAuthError reports whether err means the session token is no longer accepted.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized)
}
