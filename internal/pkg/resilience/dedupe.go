package resilience

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group collapses concurrent calls that share a key into one execution.
// Every caller receives the same result.
type Group struct {
	sf singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by every caller waiting on one key.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Do runs fn once per in-flight key. The shared flag reports whether the
// result was delivered to more than one caller.
func Do[T any](g *Group, key string, fn func() (T, error)) (v T, shared bool, err error) {
	res, err, shared := g.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	v, _ = res.(T)
	return v, shared, err
}

// DoContext is Do for cancellable work. fn receives a context owned by the
// group, not by any single caller: it is cancelled once every caller waiting
// on key has returned, whether by result or by its own ctx ending. A caller
// whose ctx ends returns ctx.Err() at once while the others keep waiting.
func DoContext[T any](ctx context.Context, g *Group, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	f := g.join(key)
	defer g.leave(key, f)

	ch := g.sf.DoChan(key, func() (interface{}, error) {
		return fn(f.ctx)
	})
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Shared, r.Err
		}
		v, _ := r.Val.(T)
		return v, r.Shared, nil
	}
}

func (g *Group) join(key string) *flight {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flights == nil {
		g.flights = make(map[string]*flight)
	}
	f, ok := g.flights[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &flight{ctx: ctx, cancel: cancel}
		g.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one out cancels the shared call and forgets
// the key, so a later caller starts a fresh call instead of joining the
// cancelled one.
func (g *Group) leave(key string, f *flight) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if g.flights[key] == f {
		delete(g.flights, key)
	}
	f.cancel()
	g.sf.Forget(key)
}

// Forget drops an in-flight key so the next call starts afresh.
func (g *Group) Forget(key string) {
	g.sf.Forget(key)
}
