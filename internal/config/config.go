package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration. Values come from defaults, then
// the YAML file, then environment variables (the env tag names the variable).
type Config struct {
	Server struct {
		Port            string        `yaml:"port" env:"SERVER_PORT"`
		Mode            string        `yaml:"mode" env:"SERVER_MODE"`
		ReadTimeout     time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
		CompressLevel   int           `yaml:"compressLevel" env:"SERVER_COMPRESS_LEVEL"`
	} `yaml:"server"`

	Database struct {
		Host            string        `yaml:"host" env:"DB_HOST"`
		Port            string        `yaml:"port" env:"DB_PORT"`
		User            string        `yaml:"user" env:"DB_USER"`
		Password        string        `yaml:"password" env:"DB_PASSWORD"`
		DBName          string        `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxConns        int           `yaml:"maxConns" env:"DB_MAX_CONNS"`
		MinConns        int           `yaml:"minConns" env:"DB_MIN_CONNS"`
		ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" env:"DB_CONN_MAX_LIFETIME"`
		ConnectRetries  int           `yaml:"connectRetries" env:"DB_CONNECT_RETRIES"`
		MigrateOnStart  bool          `yaml:"migrateOnStart" env:"DB_MIGRATE_ON_START"`
		SeedOnStart     bool          `yaml:"seedOnStart" env:"DB_SEED_ON_START"`
	} `yaml:"database"`

	Seed struct {
		AdminEmail    string `yaml:"adminEmail" env:"SEED_ADMIN_EMAIL"`
		AdminPassword string `yaml:"adminPassword" env:"SEED_ADMIN_PASSWORD"`
	} `yaml:"seed"`

	JWT struct {
		Secret                 string        `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration  time.Duration `yaml:"accessTokenExpiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		RefreshTokenExpiration time.Duration `yaml:"refreshTokenExpiration" env:"JWT_REFRESH_TOKEN_EXPIRATION"`
		Issuer                 string        `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`

	Cache struct {
		DefaultTTL   time.Duration `yaml:"defaultTTL" env:"CACHE_DEFAULT_TTL"`
		DashboardTTL time.Duration `yaml:"dashboardTTL" env:"CACHE_DASHBOARD_TTL"`
		KeyPrefix    string        `yaml:"keyPrefix" env:"CACHE_KEY_PREFIX"`
	} `yaml:"cache"`

	RateLimit struct {
		Enabled        bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
		RequestsPerSec float64       `yaml:"requestsPerSec" env:"RATE_LIMIT_RPS"`
		Burst          int           `yaml:"burst" env:"RATE_LIMIT_BURST"`
		LoginPerMinute int           `yaml:"loginPerMinute" env:"RATE_LIMIT_LOGIN_PER_MINUTE"`
		LoginBurst     int           `yaml:"loginBurst" env:"RATE_LIMIT_LOGIN_BURST"`
		IdleTTL        time.Duration `yaml:"idleTTL" env:"RATE_LIMIT_IDLE_TTL"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins   []string `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS"`
		AllowCredentials bool     `yaml:"allowCredentials" env:"CORS_ALLOW_CREDENTIALS"`
	} `yaml:"cors"`

	Scheduler struct {
		Enabled              bool   `yaml:"enabled" env:"SCHEDULER_ENABLED"`
		OverdueFeesSpec      string `yaml:"overdueFeesSpec" env:"SCHEDULER_OVERDUE_FEES"`
		TokenCleanupSpec     string `yaml:"tokenCleanupSpec" env:"SCHEDULER_TOKEN_CLEANUP"`
		ActivityRetention    string `yaml:"activityRetentionSpec" env:"SCHEDULER_ACTIVITY_RETENTION"`
		FeeReminderSpec      string `yaml:"feeReminderSpec" env:"SCHEDULER_FEE_REMINDER"`
		FeeReminderDaysAhead int    `yaml:"feeReminderDaysAhead" env:"SCHEDULER_FEE_REMINDER_DAYS"`
	} `yaml:"scheduler"`

	Activity struct {
		RetentionDays  int  `yaml:"retentionDays" env:"ACTIVITY_RETENTION_DAYS"`
		RecordRequests bool `yaml:"recordRequests" env:"ACTIVITY_RECORD_REQUESTS"`
		RecentLimit    int  `yaml:"recentLimit" env:"ACTIVITY_RECENT_LIMIT"`
	} `yaml:"activity"`

	SMTP struct {
		Host     string `yaml:"host" env:"SMTP_HOST"`
		Port     int    `yaml:"port" env:"SMTP_PORT"`
		Username string `yaml:"username" env:"SMTP_USERNAME"`
		Password string `yaml:"password" env:"SMTP_PASSWORD"`
		From     string `yaml:"from" env:"SMTP_FROM"`
	} `yaml:"smtp"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
		Path    string `yaml:"path" env:"METRICS_PATH"`
	} `yaml:"metrics"`
}

// LoadConfig reads configuration from configPath (optional) and the
// environment. A .env file in the working directory is loaded first when
// present; variables already set in the process win.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	setDefaults(cfg)

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := processStructFields(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "development"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.CompressLevel = -1

	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.DBName = "smis"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.MinConns = 2
	cfg.Database.ConnMaxLifetime = time.Hour
	cfg.Database.ConnectRetries = 5
	cfg.Database.MigrateOnStart = true
	cfg.Database.SeedOnStart = true

	cfg.Seed.AdminEmail = "admin@smis.local"
	cfg.Seed.AdminPassword = "Admin12345"

	cfg.JWT.AccessTokenExpiration = time.Hour
	cfg.JWT.RefreshTokenExpiration = 7 * 24 * time.Hour
	cfg.JWT.Issuer = "smis"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Addr = "localhost:6379"

	cfg.Cache.DefaultTTL = 5 * time.Minute
	cfg.Cache.DashboardTTL = time.Minute
	cfg.Cache.KeyPrefix = "smis:"

	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSec = 20
	cfg.RateLimit.Burst = 40
	cfg.RateLimit.LoginPerMinute = 10
	cfg.RateLimit.LoginBurst = 5
	cfg.RateLimit.IdleTTL = 10 * time.Minute

	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.CORS.AllowCredentials = true

	cfg.Scheduler.Enabled = true
	cfg.Scheduler.OverdueFeesSpec = "0 1 * * *"
	cfg.Scheduler.TokenCleanupSpec = "30 2 * * *"
	cfg.Scheduler.ActivityRetention = "0 3 * * *"
	cfg.Scheduler.FeeReminderSpec = "0 8 * * 1"
	cfg.Scheduler.FeeReminderDaysAhead = 7

	cfg.Activity.RetentionDays = 180
	cfg.Activity.RecordRequests = true
	cfg.Activity.RecentLimit = 20

	cfg.SMTP.Port = 587
	cfg.SMTP.From = "no-reply@smis.local"

	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if cfg.JWT.AccessTokenExpiration <= 0 || cfg.JWT.RefreshTokenExpiration <= 0 {
		return fmt.Errorf("JWT token expirations must be positive")
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RequestsPerSec <= 0 || cfg.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requestsPerSec and burst")
	}
	if cfg.Activity.RetentionDays < 0 {
		return fmt.Errorf("activity retention days cannot be negative")
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return fmt.Errorf("database minConns (%d) exceeds maxConns (%d)", cfg.Database.MinConns, cfg.Database.MaxConns)
	}
	return nil
}

// GetPostgresConnectionString returns a pgx-compatible connection URL.
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + c.Database.Port,
		Path:     c.Database.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// IsProduction reports whether the server runs in release mode.
func (c *Config) IsProduction() bool {
	m := strings.ToLower(c.Server.Mode)
	return m == "production" || m == "release"
}

// GetEnv gets an environment variable or returns a default value.
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets an environment variable as an integer or returns a default value.
func GetEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
