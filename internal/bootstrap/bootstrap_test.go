package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/config"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/cache"
	"github.com/smis-school/smis/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_MODE", "release")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestSeedOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed.AdminEmail = "root@school.test"
	cfg.Seed.AdminPassword = ""

	opts := SeedOptions(cfg)
	assert.Equal(t, "root@school.test", opts.AdminEmail)
	assert.NotEmpty(t, opts.AdminPassword)
}

func TestSetupCache(t *testing.T) {
	ctx := context.Background()

	t.Run("memory when redis disabled", func(t *testing.T) {
		cfg := testConfig(t)
		store := SetupCache(ctx, cfg, zerolog.Nop())
		_, ok := store.(*cache.MemoryStore)
		assert.True(t, ok)
	})

	t.Run("redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = mr.Addr()

		store := SetupCache(ctx, cfg, zerolog.Nop())
		defer store.Close()
		_, ok := store.(*cache.RedisStore)
		require.True(t, ok)

		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
		assert.True(t, mr.Exists(cfg.Cache.KeyPrefix+"k"))
	})

	t.Run("falls back when redis is down", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig(t)
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = addr

		store := SetupCache(ctx, cfg, zerolog.Nop())
		_, ok := store.(*cache.MemoryStore)
		assert.True(t, ok)
	})
}

func TestSetupRouter(t *testing.T) {
	cfg := testConfig(t)
	deps, err := BuildDependencies(cfg, &db.PostgresDB{}, cache.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, deps.APILimiter)
	require.NotNil(t, deps.LoginLimiter)

	router := SetupRouter(cfg, deps, zerolog.Nop())

	cases := []struct {
		path   string
		status int
	}{
		{"/ping", http.StatusOK},
		{cfg.Metrics.Path, http.StatusOK},
		{"/api/students/profile", http.StatusUnauthorized},
		{"/api/nope", http.StatusNotFound},
		{"/swagger/doc.json", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestSetupScheduler(t *testing.T) {
	cfg := testConfig(t)
	deps, err := BuildDependencies(cfg, &db.PostgresDB{}, cache.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	s, err := SetupScheduler(cfg, deps, zerolog.Nop())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		scheduler.JobOverdueFees,
		scheduler.JobFeeReminders,
		scheduler.JobTokenCleanup,
		scheduler.JobActivityRetention,
	}, s.Jobs())

	cfg.Scheduler.Enabled = false
	s, err = SetupScheduler(cfg, deps, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, s)
}
