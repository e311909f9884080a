// Package session holds the operator's credential between requests.
//
// A Session is the single owner of the stored tokens. Login writes them,
// the API client reads the access token on every request, and Logout or
// Invalidate remove them. All three use the same key names.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"astrofin/internal/clock"
)

// Storage keys. The API client reads KeyAccess; logout clears it.
const (
	KeyAccess   = "access_token"
	KeyRefresh  = "refresh_token"
	KeyLoggedIn = "logged_in_at"
)

// ErrNotLoggedIn is returned by operations that need a stored credential.
var ErrNotLoggedIn = errors.New("not logged in")

// Store is a small key/value persistence for session data.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Clear removes every key, including ones this package did not write.
	Clear(ctx context.Context) error
}

// Tokens is the pair returned by the token endpoint.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Info describes the stored credential. Nothing here is verified; the
// backend stays the only judge of validity.
type Info struct {
	UserID     string
	Username   string
	ExpiresAt  time.Time
	LoggedInAt time.Time
}

type Session struct {
	store Store
	clock clock.Clock
}

// New returns a Session over store. A nil clock means the real one.
func New(store Store, clk clock.Clock) *Session {
	if clk == nil {
		clk = clock.Real()
	}
	return &Session{store: store, clock: clk}
}

// Login stores a freshly issued token pair.
func (s *Session) Login(ctx context.Context, t Tokens) error {
	if t.Access == "" {
		return errors.New("empty access token")
	}
	if err := s.store.Set(ctx, KeyAccess, t.Access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if t.Refresh != "" {
		if err := s.store.Set(ctx, KeyRefresh, t.Refresh); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
	}
	if err := s.store.Set(ctx, KeyLoggedIn, s.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("store login time: %w", err)
	}
	return nil
}

// AccessToken returns the stored access token, or "" when there is none.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, KeyAccess)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// Authenticated reports whether an access token is stored. No expiry
// check is made.
func (s *Session) Authenticated(ctx context.Context) bool {
	tok, err := s.AccessToken(ctx)
	return err == nil && tok != ""
}

// Logout removes the credential keys written by Login.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyAccess, KeyRefresh, KeyLoggedIn); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Invalidate wipes all session data. Called when the backend rejects the
// credential.
func (s *Session) Invalidate(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// Info decodes the stored access token's claims without verifying them.
func (s *Session) Info(ctx context.Context) (Info, error) {
	tok, err := s.AccessToken(ctx)
	if err != nil {
		return Info{}, err
	}
	if tok == "" {
		return Info{}, ErrNotLoggedIn
	}
	info := DecodeClaims(tok)
	if v, ok, err := s.store.Get(ctx, KeyLoggedIn); err == nil && ok {
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			info.LoggedInAt = t
		}
	}
	return info, nil
}

// DecodeClaims reads user_id, username and exp from a JWT. Tokens that
// are not JWTs yield an empty Info.
func DecodeClaims(token string) Info {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Info{}
	}
	var info Info
	switch v := claims["user_id"].(type) {
	case string:
		info.UserID = v
	case float64:
		info.UserID = fmt.Sprintf("%.0f", v)
	}
	if v, ok := claims["username"].(string); ok {
		info.Username = v
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info
}
