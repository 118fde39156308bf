// Package cache provides a key/value store with per-entry TTL and a typed
// read-through helper.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smis-school/smis/internal/pkg/resilience"
)

// ErrInvalidTTL is returned by Set for non-positive TTLs.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// Store is a byte-valued cache. Every entry expires after its TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
	Stats() Stats
	Ping(ctx context.Context) error
	Close() error
}

// Stats reports cache counters.
type Stats struct {
	Backend string
	Hits    uint64
	Misses  uint64
	Keys    int64
}

// Group deduplicates concurrent loads for the same key.
type Group struct {
	g resilience.Group
}

// Remember returns the cached value for key or calls load, caching its result
// for ttl. Concurrent misses for the same key share one load call when group
// is non-nil; the shared load is cancelled only once every caller waiting on
// it has gone. Cache read/write failures fall through to load.
func Remember[T any](ctx context.Context, store Store, group *Group, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if raw, ok, err := store.Get(ctx, key); err == nil && ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	fill := func(ctx context.Context) (T, error) {
		v, err := load(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if raw, err := json.Marshal(v); err == nil {
			_ = store.Set(ctx, key, raw, ttl)
		}
		return v, nil
	}

	if group == nil {
		return fill(ctx)
	}
	v, _, err := resilience.DoContext(ctx, &group.g, key, fill)
	return v, err
}

// SetJSON marshals v and stores it.
func SetJSON(ctx context.Context, store Store, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}

// GetJSON loads key into dst. It reports whether the key was present.
func GetJSON(ctx context.Context, store Store, key string, dst interface{}) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Key joins parts with ':'.
func Key(parts ...interface{}) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ":"
		}
		out += fmt.Sprint(p)
	}
	return out
}
