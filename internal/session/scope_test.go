package session

import (
	"context"
	"path/filepath"
	"testing"
)

// bareStore has no ClearPrefix, so scoped Clear falls back to Delete.
type bareStore struct{ m *MemoryStore }

func (b bareStore) Get(ctx context.Context, key string) (string, bool, error) {
	return b.m.Get(ctx, key)
}
func (b bareStore) Set(ctx context.Context, key, value string) error { return b.m.Set(ctx, key, value) }
func (b bareStore) Delete(ctx context.Context, keys ...string) error {
	return b.m.Delete(ctx, keys...)
}
func (b bareStore) Clear(ctx context.Context) error { return b.m.Clear(ctx) }

func TestScopeIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"file":   func(t *testing.T) Store { return NewFileStore(filepath.Join(t.TempDir(), "session.json")) },
		"bare":   func(*testing.T) Store { return bareStore{NewMemoryStore()} },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			shared := open(t)
			alice := New(Scope(shared, "a1"), nil)
			bob := New(Scope(shared, "b2"), nil)

			if err := alice.Login(ctx, Tokens{Access: "tok-a", Refresh: "ref-a"}); err != nil {
				t.Fatal(err)
			}
			if bob.Authenticated(ctx) {
				t.Fatal("second caller sees the first caller's token")
			}
			if err := bob.Login(ctx, Tokens{Access: "tok-b"}); err != nil {
				t.Fatal(err)
			}

			if err := alice.Invalidate(ctx); err != nil {
				t.Fatal(err)
			}
			if alice.Authenticated(ctx) {
				t.Error("invalidated caller still authenticated")
			}
			if tok, _ := bob.AccessToken(ctx); tok != "tok-b" {
				t.Errorf("other caller's token = %q after invalidate", tok)
			}

			if err := bob.Logout(ctx); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := shared.Get(ctx, "sid:b2:"+KeyAccess); ok {
				t.Error("logout left the scoped key")
			}
		})
	}
}

func TestScopePrefixesKeys(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()
	if err := Scope(shared, "x").Set(ctx, KeyAccess, "v"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := shared.Get(ctx, KeyAccess); ok {
		t.Error("unscoped key written")
	}
	if v, ok, _ := shared.Get(ctx, "sid:x:"+KeyAccess); !ok || v != "v" {
		t.Errorf("scoped key = %q, %v", v, ok)
	}
}
