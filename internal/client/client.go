// Package client is the Go SDK for the Framez API. One Client is meant to
// live for the whole process: it owns the session, persists it through a
// TokenStore and notifies listeners when the auth state changes.
package client

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
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultClientInfo identifies requests sent by the command line client.
const DefaultClientInfo = "framez-cli"

// ClientInfoHeader carries the client identification on every request.
const ClientInfoHeader = "x-client-info"

// refreshSkew renews access tokens slightly before they expire.
const refreshSkew = 30 * time.Second

var (
	// ErrNotConfigured is returned when the client has no backend URL.
	ErrNotConfigured = errors.New("framez client: backend URL not configured")
	// ErrNotSignedIn is returned by calls that need a session when there is none.
	ErrNotSignedIn = errors.New("not signed in")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("framez api: %s", http.StatusText(e.Status))
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenStore persists sessions in store instead of memory.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

// WithClientInfo overrides the x-client-info header value.
func WithClientInfo(info string) Option {
	return func(c *Client) {
		if info = strings.TrimSpace(info); info != "" {
			c.clientInfo = info
		}
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the Framez API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
	tokens     TokenStore
	clientInfo string
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex
	session   *Session
	listeners []listenerEntry
	nextID    int
}

// New builds a client for baseURL. A missing URL only logs a warning so the
// caller can still start up; requests then fail with ErrNotConfigured.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		tokens:     NewMemoryTokenStore(),
		clientInfo: DefaultClientInfo,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		c.logger.Warn("framez backend URL is not set; requests will fail until it is configured")
		return c, nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("parse backend url: unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	c.baseURL = parsed
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, ErrNotConfigured
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return &u, nil
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	token       string
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("marshal request: %w", err)
	}
	req.body = bytes.NewReader(body)
	req.contentType = "application/json"
	return req, nil
}

// do sends req and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	u, err := c.endpoint(r.path, r.query)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientInfoHeader, c.clientInfo)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// authorized sends req with a fresh access token.
func (c *Client) authorized(ctx context.Context, r request, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	r.token = token
	return c.do(ctx, r, out)
}
