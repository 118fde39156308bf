package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/bootstrap"
	"github.com/smis-school/smis/internal/config"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/scheduler"
)

// Server holds the state for the HTTP server.
type Server struct {
	config    *config.Config
	router    *gin.Engine
	deps      *bootstrap.Dependencies
	scheduler *scheduler.Scheduler
	logger    zerolog.Logger
	http      *http.Server

	// cancels the hub and limiter cleanup goroutines
	stopBackground context.CancelFunc
}

// NewServer creates and initializes a new server instance by calling bootstrap functions.
func NewServer(ctx context.Context, configPath string) (*Server, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config or setup logger: %w", err)
	}

	database, err := bootstrap.SetupDatabase(ctx, cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	store := bootstrap.SetupCache(ctx, cfg, lgr)

	deps, err := bootstrap.BuildDependencies(cfg, database, store, lgr)
	if err != nil {
		database.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup dependencies: %w", err)
	}

	sched, err := bootstrap.SetupScheduler(cfg, deps, lgr)
	if err != nil {
		database.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup scheduler: %w", err)
	}

	return &Server{
		config:    cfg,
		router:    bootstrap.SetupRouter(cfg, deps, lgr),
		deps:      deps,
		scheduler: sched,
		logger:    lgr,
	}, nil
}

func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel

	go s.deps.Hub.Run(ctx)
	for _, rl := range []*middleware.RateLimiter{s.deps.APILimiter, s.deps.LoginLimiter} {
		if rl != nil {
			rl.StartCleanup(ctx, time.Minute)
		}
	}
	if s.scheduler != nil {
		s.scheduler.Start()
	}
}

// Run starts the HTTP server and handles graceful shutdown.
func (s *Server) Run() error {
	s.startBackground()

	s.http = &http.Server{
		Addr:              ":" + s.config.Server.Port,
		Handler:           s.router,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to listen for errors starting the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Str("version", bootstrap.Version).Msg("HTTP server listening")
		serverErrors <- s.http.ListenAndServe()
	}()

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(osSignals)

	// Block until we receive either a server error or an OS signal
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("error starting server: %w", err)
		}
	case sig := <-osSignals:
		s.logger.Info().Str("signal", sig.String()).Msg("Received OS signal, initiating shutdown...")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully stops the server and closes resources.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if s.http != nil {
		s.logger.Info().Msg("Shutting down HTTP server...")
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server shutdown error")
			errs = append(errs, err)
		} else {
			s.logger.Info().Msg("HTTP server gracefully stopped.")
		}
	}

	if s.scheduler != nil {
		s.scheduler.Stop(ctx)
	}
	if s.stopBackground != nil {
		s.stopBackground()
	}

	if err := s.deps.Cache.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Cache close error")
		errs = append(errs, err)
	}

	if s.deps.DB != nil {
		s.logger.Info().Msg("Closing database connection pool...")
		s.deps.DB.Close()
	}

	s.logger.Info().Msg("Server shutdown process complete.")
	if len(errs) > 0 {
		return fmt.Errorf("server shutdown completed with errors: %w", errors.Join(errs...))
	}
	return nil
}
