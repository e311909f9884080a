package session

import (
	"context"
	"strings"
)

// PrefixClearer is implemented by stores that can drop every key sharing
// a prefix in one call.
type PrefixClearer interface {
	ClearPrefix(ctx context.Context, prefix string) error
}

// Scope returns a view of store in which every key lives under id. Many
// callers can share one store this way; Clear on the view only removes
// that caller's keys.
func Scope(store Store, id string) Store {
	return &scoped{store: store, prefix: "sid:" + id + ":"}
}

type scoped struct {
	store  Store
	prefix string
}

func (s *scoped) key(k string) string { return s.prefix + k }

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.key(key))
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.key(key), value)
}

func (s *scoped) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.store.Delete(ctx, full...)
}

// Clear removes the scope's keys. Stores that cannot match a prefix lose
// the keys Session writes.
func (s *scoped) Clear(ctx context.Context) error {
	if pc, ok := s.store.(PrefixClearer); ok {
		return pc.ClearPrefix(ctx, s.prefix)
	}
	return s.Delete(ctx, KeyAccess, KeyRefresh, KeyLoggedIn)
}

func deletePrefix(m map[string]string, prefix string) {
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			delete(m, k)
		}
	}
}
