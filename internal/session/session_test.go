package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"astrofin/internal/clock"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "astrofin", "session.json")),
	}
}

func TestLoginThenLogoutClearsTheKeyTheClientReads(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := New(store, clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
			if s.Authenticated(ctx) {
				t.Fatal("fresh session should not be authenticated")
			}
			if err := s.Login(ctx, Tokens{Access: "a1", Refresh: "r1"}); err != nil {
				t.Fatalf("login: %v", err)
			}
			if tok, _ := s.AccessToken(ctx); tok != "a1" {
				t.Fatalf("access token = %q", tok)
			}

			if err := s.Logout(ctx); err != nil {
				t.Fatalf("logout: %v", err)
			}
			if tok, _ := s.AccessToken(ctx); tok != "" {
				t.Fatalf("access token survived logout: %q", tok)
			}
			for _, key := range []string{KeyAccess, KeyRefresh, KeyLoggedIn} {
				if _, ok, _ := store.Get(ctx, key); ok {
					t.Fatalf("%s survived logout", key)
				}
			}
		})
	}
}

func TestInvalidateWipesEverything(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := New(store, nil)
			if err := s.Login(ctx, Tokens{Access: "a1", Refresh: "r1"}); err != nil {
				t.Fatal(err)
			}
			if err := store.Set(ctx, "theme", "dark"); err != nil {
				t.Fatal(err)
			}
			if err := s.Invalidate(ctx); err != nil {
				t.Fatalf("invalidate: %v", err)
			}
			if _, ok, _ := store.Get(ctx, "theme"); ok {
				t.Fatal("unrelated key survived invalidate")
			}
			if s.Authenticated(ctx) {
				t.Fatal("still authenticated after invalidate")
			}
		})
	}
}

func TestLoginRejectsEmptyAccess(t *testing.T) {
	s := New(NewMemoryStore(), nil)
	if err := s.Login(context.Background(), Tokens{Refresh: "r"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := New(NewMemoryStore(), clock.NewFake(now))

	if _, err := s.Info(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}

	// Already expired: decoding must still work since nothing is enforced.
	exp := now.Add(-time.Hour)
	tok := signed(t, jwt.MapClaims{"user_id": 7, "username": "admin", "exp": exp.Unix(), "token_type": "access"})
	if err := s.Login(ctx, Tokens{Access: tok}); err != nil {
		t.Fatal(err)
	}
	info, err := s.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.UserID != "7" || info.Username != "admin" {
		t.Fatalf("unexpected claims: %+v", info)
	}
	if !info.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Fatalf("expires at %v, want %v", info.ExpiresAt, exp)
	}
	if !info.LoggedInAt.Equal(now) {
		t.Fatalf("logged in at %v, want %v", info.LoggedInAt, now)
	}
	if !s.Authenticated(ctx) {
		t.Fatal("expired token must still count as a stored credential")
	}
}

func TestDecodeClaimsOpaqueToken(t *testing.T) {
	if info := DecodeClaims("not-a-jwt"); info != (Info{}) {
		t.Fatalf("expected empty info, got %+v", info)
	}
}

func TestFileStorePermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewFileStore(path)

	if err := store.Set(ctx, KeyAccess, "secret"); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := st.Mode().Perm(); perm != 0600 {
		t.Fatalf("session file mode = %o, want 600", perm)
	}

	// A second store on the same path sees the data.
	if v, ok, _ := NewFileStore(path).Get(ctx, KeyAccess); !ok || v != "secret" {
		t.Fatalf("reload = %q, %v", v, ok)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStore(path).Get(context.Background(), KeyAccess); err == nil {
		t.Fatal("expected parse error")
	}
}
