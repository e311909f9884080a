// Package api talks to the finance backend's REST interface.
//
// Every call carries the session's bearer token. A 401 from any endpoint
// wipes the session and surfaces ErrUnauthorized; other failures come back
// as *Error with the server body intact. Nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"astrofin/internal/clock"
	applog "astrofin/internal/log"
	"astrofin/internal/session"
)

const maxBodyBytes = 4 << 20

// Mutation describes a successful create, update, delete or payment.
type Mutation struct {
	Resource string    `json:"resource"`
	Op       string    `json:"op"`
	ID       int64     `json:"id,omitempty"`
	At       time.Time `json:"at"`
}

// MutationObserver is told about every successful mutation.
type MutationObserver interface {
	Mutated(ctx context.Context, m Mutation)
}

type Client struct {
	baseURL  string
	http     *http.Client
	session  *session.Session
	logger   *applog.Logger
	clock    clock.Clock
	observer MutationObserver
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(applog.ComponentAPI) }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithObserver registers o to hear about successful mutations.
func WithObserver(o MutationObserver) Option {
	return func(c *Client) { c.observer = o }
}

// New returns a client for the backend rooted at baseURL (without the
// /api suffix). The session is required.
func New(baseURL string, sess *session.Session, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/",
		http:    &http.Client{Timeout: timeout},
		session: sess,
		logger:  applog.Discard(),
		clock:   clock.Real(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session this client reads its credential from.
func (c *Client) Session() *session.Session { return c.session }

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tokens session.Tokens
	body := map[string]string{"username": username, "password": password}
	// Token exchange is unauthenticated; a 401 here means bad credentials.
	if err := c.send(ctx, http.MethodPost, "token/", nil, body, &tokens, false); err != nil {
		return err
	}
	if err := c.session.Login(ctx, tokens); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	c.logger.InfoContext(ctx, "Logged in", applog.FieldOperation, applog.OpLogin)
	return nil
}

// Logout forgets the stored credential. The backend is not contacted.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.session.Logout(ctx); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Logged out", applog.FieldOperation, applog.OpLogout)
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, http.MethodGet, path, query, nil, out, true)
}

// notify tells the observer about a mutation that already succeeded.
func (c *Client) notify(ctx context.Context, resource, op string, id int64) {
	if c.observer == nil {
		return
	}
	c.observer.Mutated(ctx, Mutation{Resource: strings.TrimSuffix(resource, "/"), Op: op, ID: id, At: c.clock.Now()})
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, in, out any, auth bool) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		tok, err := c.session.AccessToken(ctx)
		if err != nil {
			return err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := c.clock.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	c.logger.DebugContext(ctx, "Backend call",
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, c.clock.Now().Sub(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized && auth {
		if err := c.session.Invalidate(ctx); err != nil {
			c.logger.ErrorContext(ctx, "Failed to clear session after 401", applog.FieldError, err)
		}
		c.logger.WarnContext(ctx, "Backend rejected credential, session cleared", applog.FieldPath, path)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Body: raw}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func itemPath(collection string, id int64) string {
	return collection + strconv.FormatInt(id, 10) + "/"
}

// IsUnauthorized reports whether err means the operator must log in again.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
