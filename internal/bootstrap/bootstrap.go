package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appAuth "github.com/smis-school/smis/internal/app/auth"
	appControllers "github.com/smis-school/smis/internal/app/controllers"
	appMigrations "github.com/smis-school/smis/internal/app/migrations"
	appRepos "github.com/smis-school/smis/internal/app/repositories"
	appRoutes "github.com/smis-school/smis/internal/app/routes"
	appServices "github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/config"
	"github.com/smis-school/smis/internal/db"
	appMiddleware "github.com/smis-school/smis/internal/middleware"
	pkgAuth "github.com/smis-school/smis/internal/pkg/auth"
	"github.com/smis-school/smis/internal/pkg/cache"
	"github.com/smis-school/smis/internal/pkg/email"
	"github.com/smis-school/smis/internal/pkg/logger"
	"github.com/smis-school/smis/internal/pkg/metrics"
	"github.com/smis-school/smis/internal/pkg/validation"
	"github.com/smis-school/smis/internal/pkg/websocket"
	"github.com/smis-school/smis/internal/scheduler"
	"github.com/smis-school/smis/internal/seed"
	"github.com/smis-school/smis/migrations"
)

// Version is stamped at build time with -ldflags "-X ...bootstrap.Version=...".
var Version = "dev"

// Dependencies holds all the application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *db.PostgresDB
	Cache   cache.Store
	Repos   *appRepos.Repositories
	Hub     *websocket.Hub
	Metrics *metrics.Metrics

	JWTService   *pkgAuth.JWTService
	AuthzService *appAuth.AuthorizationService

	AuthService       appServices.AuthService
	ActivityService   *appServices.ActivityServiceImpl
	UserService       *appServices.UserServiceImpl
	DepartmentService *appServices.DepartmentServiceImpl
	StudentService    appServices.StudentService
	TeacherService    appServices.TeacherService
	HODService        appServices.HODService
	FinanceService    *appServices.FinanceServiceImpl
	AdminService      appServices.AdminService

	AuthMiddleware *appMiddleware.AuthMiddleware
	Controllers    appRoutes.Controllers

	// Nil when rate limiting is disabled.
	APILimiter   *appMiddleware.RateLimiter
	LoginLimiter *appMiddleware.RateLimiter
}

// DefaultConfigPath is used when CONFIG_PATH is unset.
var DefaultConfigPath = filepath.Join("configs", "config.yaml")

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	if configPath == "" {
		configPath = config.GetEnv("CONFIG_PATH", DefaultConfigPath)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  strings.ToLower(cfg.Logging.Format) == "text",
		Service: "smis",
	})

	lgr := logger.Get()
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase connects to PostgreSQL, then applies migrations and default
// data when configured to.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	if cfg.Database.MigrateOnStart {
		if _, err := RunMigrations(ctx, database.Pool, lgr); err != nil {
			database.Close()
			return nil, err
		}
	}

	if cfg.Database.SeedOnStart {
		if _, err := seed.CreateDefaultData(ctx, database.Pool, SeedOptions(cfg), lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
	}
	return database, nil
}

// RunMigrations applies the embedded schema files not applied yet.
func RunMigrations(ctx context.Context, conn db.DBTX, lgr zerolog.Logger) ([]string, error) {
	lgr.Info().Msg("Running database migrations...")
	applied, err := appMigrations.NewMigrator(conn, lgr).Migrate(ctx, migrations.FS)
	if err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return applied, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Int("applied", len(applied)).Msg("Database migrations up to date")
	return applied, nil
}

// SeedOptions reads the admin account from configuration.
func SeedOptions(cfg *config.Config) seed.Options {
	opts := seed.DefaultOptions()
	if cfg.Seed.AdminEmail != "" {
		opts.AdminEmail = cfg.Seed.AdminEmail
	}
	if cfg.Seed.AdminPassword != "" {
		opts.AdminPassword = cfg.Seed.AdminPassword
	}
	return opts
}

// SetupCache connects to Redis when enabled and falls back to the in-memory
// store when it is disabled or unreachable.
func SetupCache(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) cache.Store {
	if !cfg.Redis.Enabled {
		lgr.Info().Msg("Using in-memory cache")
		return cache.NewMemoryStore()
	}
	store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Cache.KeyPrefix,
	})
	if err != nil {
		lgr.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory cache")
		return cache.NewMemoryStore()
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis cache")
	return store
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, store cache.Store, lgr zerolog.Logger) (*Dependencies, error) {
	if err := validation.RegisterGinRules(); err != nil {
		return nil, fmt.Errorf("failed to register validation rules: %w", err)
	}

	deps := &Dependencies{
		Config:  cfg,
		Logger:  lgr,
		DB:      database,
		Cache:   store,
		Metrics: metrics.New(true),
		Hub:     websocket.NewHub(lgr.With().Str("component", "websocket").Logger()),
	}
	conn := database.Pool
	deps.Repos = appRepos.NewRepositories(conn)
	deps.AuthzService = appAuth.NewAuthorizationService(deps.Repos)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  cfg.JWT.AccessTokenExpiration,
		RefreshTokenExp: cfg.JWT.RefreshTokenExpiration,
		TokenIssuer:     cfg.JWT.Issuer,
	})

	dashCache := appServices.NewDashboardCache(store, cfg.Cache.DashboardTTL, lgr)
	mailer := email.NewSMTPMailer(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, lgr.With().Str("component", "email").Logger())

	deps.ActivityService = appServices.NewActivityService(deps.Repos.ActivityRepository, deps.Hub, cfg.Activity.RecentLimit, lgr)
	activity := deps.ActivityService

	deps.AuthService = appServices.NewAuthService(conn, deps.Repos, deps.JWTService, activity, lgr)
	deps.UserService = appServices.NewUserService(conn, deps.Repos, activity, dashCache, lgr)
	deps.DepartmentService = appServices.NewDepartmentService(conn, deps.Repos, activity, dashCache, lgr)
	deps.StudentService = appServices.NewStudentService(deps.Repos, dashCache, lgr)
	deps.TeacherService = appServices.NewTeacherService(conn, deps.Repos, deps.AuthzService, activity, dashCache, lgr)
	deps.HODService = appServices.NewHODService(deps.Repos, deps.AuthzService, activity, dashCache, lgr)
	deps.FinanceService = appServices.NewFinanceService(conn, deps.Repos, mailer, activity, dashCache, lgr)
	deps.AdminService = appServices.NewAdminService(deps.Repos, activity, dashCache, lgr)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.Controllers = appRoutes.Controllers{
		Auth:     appControllers.NewAuthController(deps.AuthService, lgr),
		Student:  appControllers.NewStudentController(deps.StudentService),
		Teacher:  appControllers.NewTeacherController(deps.TeacherService, lgr),
		HOD:      appControllers.NewHODController(deps.HODService),
		Finance:  appControllers.NewFinanceController(deps.FinanceService, lgr),
		Admin:    appControllers.NewAdminController(deps.AdminService, deps.UserService, deps.DepartmentService, lgr),
		Activity: appControllers.NewActivityController(deps.ActivityService, deps.Hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins), lgr),
		Health: appControllers.NewHealthController(Version, map[string]appControllers.Pinger{
			"database": database,
			"cache":    store,
		}),
	}

	if cfg.RateLimit.Enabled {
		limiterLog := lgr.With().Str("component", "ratelimit").Logger()
		deps.APILimiter = appMiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSec, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL, limiterLog)
		deps.LoginLimiter = appMiddleware.NewPerMinuteLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst, cfg.RateLimit.IdleTTL, limiterLog)
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(
		appMiddleware.RequestID(),
		appMiddleware.Recovery(lgr),
		appMiddleware.ResponseTime(),
		appMiddleware.RequestLogger(lgr, "/ping", "/health", cfg.Metrics.Path),
		appMiddleware.CORS(cfg.CORS.AllowedOrigins, cfg.CORS.AllowCredentials),
		appMiddleware.Compress(cfg.Server.CompressLevel, "/api/activities/stream", cfg.Metrics.Path),
	)
	if cfg.Metrics.Enabled {
		router.Use(appMiddleware.Metrics(deps.Metrics))
		router.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}
	if cfg.Activity.RecordRequests {
		router.Use(appMiddleware.ActivityRecorder(deps.ActivityService))
	}

	appRoutes.SetupSwagger(router, Version)

	var limits appRoutes.Limits
	if deps.APILimiter != nil {
		limits.API = deps.APILimiter.Handler()
	}
	if deps.LoginLimiter != nil {
		limits.Login = deps.LoginLimiter.Handler()
	}
	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware, limits)

	return router
}

// SetupScheduler registers the maintenance jobs. It returns nil when the
// scheduler is disabled.
func SetupScheduler(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		lgr.Info().Msg("Scheduler disabled")
		return nil, nil
	}
	jobLog := lgr.With().Str("component", "scheduler").Logger()
	s := scheduler.New(jobLog, deps.Metrics)
	for _, job := range MaintenanceJobs(cfg, deps, jobLog) {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	lgr.Info().Strs("jobs", s.Jobs()).Msg("Scheduler configured")
	return s, nil
}

// MaintenanceJobs builds the job set from configuration.
func MaintenanceJobs(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) []scheduler.Job {
	return scheduler.MaintenanceJobs(scheduler.JobConfig{
		OverdueFeesSpec:       cfg.Scheduler.OverdueFeesSpec,
		FeeReminderSpec:       cfg.Scheduler.FeeReminderSpec,
		FeeReminderDaysAhead:  cfg.Scheduler.FeeReminderDaysAhead,
		TokenCleanupSpec:      cfg.Scheduler.TokenCleanupSpec,
		ActivityRetentionSpec: cfg.Scheduler.ActivityRetention,
		ActivityRetentionDays: cfg.Activity.RetentionDays,
	}, deps.FinanceService, deps.Repos.TokenRepository, deps.ActivityService, lgr, time.Now)
}
