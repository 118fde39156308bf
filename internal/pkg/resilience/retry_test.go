package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:        max,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestRetry_ServerErrorsRetriedUpToLimit(t *testing.T) {
	var calls int32
	err := Retry(context.Background(), fastConfig(3), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return &StatusError{Code: http.StatusServiceUnavailable}
	})

	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	err := Retry(context.Background(), fastConfig(3), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return &StatusError{Code: http.StatusNotFound}
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	v, err := RetryValue(context.Background(), fastConfig(3), func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", &StatusError{Code: http.StatusBadGateway}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetry_PermanentUnwrapped(t *testing.T) {
	sentinel := errors.New("bad input")
	var calls int32
	err := Retry(context.Background(), fastConfig(5), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(sentinel)
	})

	assert.Same(t, sentinel, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetry_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, BackoffMultiplier: 1}

	var calls int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Retry(ctx, cfg, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return &StatusError{Code: 500}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}

	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 2))
	assert.Equal(t, 400*time.Millisecond, Backoff(cfg, 3))
	assert.Equal(t, time.Second, Backoff(cfg, 10))

	cfg.Jitter = 0.1
	for i := 0; i < 50; i++ {
		b := Backoff(cfg, 2)
		assert.GreaterOrEqual(t, b, 180*time.Millisecond)
		assert.LessOrEqual(t, b, 220*time.Millisecond)
	}
}

func TestDo_ConcurrentCallsShareExecution(t *testing.T) {
	g := &Group{}
	var calls int32
	release := make(chan struct{})

	const n = 10
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Do(g, "GET /api/students/dashboard", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 7, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestDoContext_CallerCanLeave(t *testing.T) {
	g := &Group{}
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := DoContext(ctx, g, "k", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoContext_LastWaiterCancelsSharedCall(t *testing.T) {
	g := &Group{}
	stopped := make(chan error, 1)
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, _, err := DoContext(ctx, g, "k", func(shared context.Context) (int, error) {
		close(started)
		<-shared.Done()
		stopped <- shared.Err()
		return 0, shared.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("shared call still running after its only caller left")
	}
}

func TestDoContext_RemainingWaiterKeepsCallAlive(t *testing.T) {
	g := &Group{}
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32

	fn := func(shared context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return 5, nil
		case <-shared.Done():
			return 0, shared.Err()
		}
	}

	stay := make(chan int, 1)
	go func() {
		v, _, err := DoContext(context.Background(), g, "k", fn)
		assert.NoError(t, err)
		stay <- v
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := DoContext(ctx, g, "k", fn)
		done <- err
	}()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.flights["k"] != nil && g.flights["k"].waiters == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Equal(t, 5, <-stay)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoContext_FreshCallAfterCancel(t *testing.T) {
	g := &Group{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DoContext(ctx, g, "k", func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)

	v, _, err := DoContext(context.Background(), g, "k", func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
