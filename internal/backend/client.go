// Package backend holds the HTTP helpers that talk to the content
// management backend. Every method returns canonical records from
// internal/models; the raw response shapes never leave this package.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mohammad2410/Sphere/internal/normalize"
	"github.com/rs/zerolog/log"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// Client issues requests against the backend API.
type Client struct {
	base  string
	http  *http.Client
	norm  *normalize.Normalizer
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithToken binds a bearer token at construction time.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the API rooted at backendURL+prefix.
func New(backendURL, prefix string, norm *normalize.Normalizer, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(backendURL, "/") + "/" + strings.Trim(prefix, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		norm: norm,
	}
	c.base = strings.TrimRight(c.base, "/")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// As returns a copy of the client that authenticates with token.
func (c *Client) As(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token the client sends, if any.
func (c *Client) Token() string {
	return c.token
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	public      bool // Sent without the Authorization header
}

func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	u := c.base + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, req.body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if !req.public && c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.method, req.path, err)
	}

	log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, public bool) (json.RawMessage, error) {
	req := request{method: method, path: path, query: query, public: public}
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.body = bytes.NewReader(buf)
		req.contentType = "application/json"
	}
	return c.do(ctx, req)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, false)
}

// dataEnvelope wraps collection writes the way the backend expects them.
type dataEnvelope struct {
	Data any `json:"data"`
}
