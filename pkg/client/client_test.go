package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/pkg/resilience"
)

func fastRetry(max int) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxRetries = max
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Jitter = 0
	return cfg
}

func writeEnvelope(w http.ResponseWriter, status int, resp dto.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, code dto.ErrorCode, msg string) {
	writeEnvelope(w, status, dto.NewErrorResponse(dto.NewErrorDetail(code, msg)))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			writeError(w, http.StatusServiceUnavailable, dto.ErrorCodeInternalServer, "warming up")
			return
		}
		writeEnvelope(w, http.StatusOK, dto.NewSuccessResponse(dto.HealthResponse{Status: "ok"}, ""))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(fastRetry(3)))
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.EqualValues(t, 3, hits.Load())
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeError(w, http.StatusInternalServerError, dto.ErrorCodeInternalServer, "boom")
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(fastRetry(2)))
	err := c.Get(context.Background(), "/api/auth/me", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.EqualValues(t, 3, hits.Load())
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("X-Request-ID", "req-1")
		writeError(w, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "Authorization header is required")
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(fastRetry(3)))
	_, err := c.Me(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "AUTH_008", apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.EqualValues(t, 1, hits.Load())
}

func TestGet_ConcurrentCallsShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		writeEnvelope(w, http.StatusOK, dto.NewSuccessResponse([]map[string]interface{}{{"id": 1, "action": "fee.created"}}, ""))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("t"), WithRetry(fastRetry(0)))

	const callers = 5
	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries, err := c.RecentActivities(context.Background(), 10)
			results[i], errs[i] = len(entries), err
		}(i)
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, hits.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 1, results[i])
	}
}

func TestLogin_StoresToken(t *testing.T) {
	var loginHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			// first attempt fails with a server error and is retried
			if loginHits.Add(1) == 1 {
				writeError(w, http.StatusBadGateway, dto.ErrorCodeExternalServiceError, "upstream")
				return
			}
			var req dto.LoginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "admin@smis.local", req.Email)
			writeEnvelope(w, http.StatusOK, dto.NewSuccessResponse(dto.TokenResponse{AccessToken: "abc", TokenType: "Bearer"}, "Login successful"))
		case "/api/auth/me":
			if r.Header.Get("Authorization") != "Bearer abc" {
				writeError(w, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "missing token")
				return
			}
			writeEnvelope(w, http.StatusOK, dto.NewSuccessResponse(dto.UserResponse{ID: 1, Email: "admin@smis.local"}, ""))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(fastRetry(2)))
	tokens, err := c.Login(context.Background(), "admin@smis.local", "Admin12345")
	require.NoError(t, err)
	assert.Equal(t, "abc", tokens.AccessToken)
	assert.EqualValues(t, 2, loginHits.Load())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), me.ID)
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, dto.ErrorCodeInternalServer, "down")
	}))
	defer srv.Close()

	retry := fastRetry(5)
	retry.InitialBackoff = time.Second
	retry.MaxBackoff = time.Second
	c := New(srv.URL, WithRetry(retry))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Get(ctx, "/health", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGet_CancelStopsSharedRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeError(w, http.StatusServiceUnavailable, dto.ErrorCodeInternalServer, "down")
	}))
	defer srv.Close()

	retry := fastRetry(5)
	retry.InitialBackoff = 100 * time.Millisecond
	retry.MaxBackoff = 100 * time.Millisecond
	c := New(srv.URL, WithRetry(retry))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Get(ctx, "/health", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	atReturn := hits.Load()
	time.Sleep(400 * time.Millisecond)
	assert.EqualValues(t, 1, atReturn)
	assert.Equal(t, atReturn, hits.Load(), "no round trips once the only caller has gone")
}
