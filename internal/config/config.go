package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credential backends.
const (
	BackendCookie = "cookie"
	BackendRedis  = "redis"
)

// Onboarding snapshot sources.
const (
	SourceAPI      = "api"
	SourcePostgres = "postgres"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App        AppConfig
	Identity   IdentityConfig
	Session    SessionConfig
	Policy     PolicyConfig
	Onboarding OnboardingConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// IdentityConfig points at the remote identity API.
type IdentityConfig struct {
	BaseURL        string
	OTPBaseURL     string
	TimeoutSeconds int
}

// SessionConfig controls where credentials live and how they are refreshed.
type SessionConfig struct {
	Backend                 string
	CookieSecure            bool
	CookieHTTPOnly          bool
	CookieDomain            string
	PhoneNormalization      string
	RefreshThresholdMinutes int
}

// PolicyConfig locates an optional YAML route policy.
type PolicyConfig struct {
	File string
}

// OnboardingConfig selects where professional snapshots are read from.
type OnboardingConfig struct {
	Source string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	DialTimeoutSec int
}

// DialTimeout bounds connection attempts, defaulting to five seconds.
func (r RedisConfig) DialTimeout() time.Duration {
	if r.DialTimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.DialTimeoutSec) * time.Second
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", "development")
	production := strings.EqualFold(env, "production")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "marketplace-gateway"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Identity: IdentityConfig{
			BaseURL:        strings.TrimSuffix(getEnv("IDENTITY_BASE_URL", "http://localhost:8000/api"), "/"),
			OTPBaseURL:     strings.TrimSuffix(os.Getenv("IDENTITY_OTP_BASE_URL"), "/"),
			TimeoutSeconds: getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 15),
		},
		Session: SessionConfig{
			Backend:                 strings.ToLower(getEnv("CREDENTIAL_BACKEND", BackendCookie)),
			CookieSecure:            getEnvAsBool("COOKIE_SECURE", production),
			CookieHTTPOnly:          getEnvAsBool("COOKIE_HTTP_ONLY", true),
			CookieDomain:            os.Getenv("COOKIE_DOMAIN"),
			PhoneNormalization:      getEnv("PHONE_NORMALIZATION", "digits_plus"),
			RefreshThresholdMinutes: getEnvAsInt("REFRESH_THRESHOLD_MINUTES", 5),
		},
		Policy: PolicyConfig{
			File: os.Getenv("POLICY_FILE"),
		},
		Onboarding: OnboardingConfig{
			Source: strings.ToLower(getEnv("ONBOARDING_SOURCE", SourceAPI)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", false),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			PoolSize:       getEnvAsInt("REDIS_POOL_SIZE", 0),
			DialTimeoutSec: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: !production,
		},
	}

	if cfg.Identity.OTPBaseURL == "" {
		cfg.Identity.OTPBaseURL = cfg.Identity.BaseURL
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case BackendCookie, BackendRedis:
	default:
		return fmt.Errorf("invalid CREDENTIAL_BACKEND %q", c.Session.Backend)
	}
	switch c.Onboarding.Source {
	case SourceAPI:
	case SourcePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("ONBOARDING_SOURCE=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("invalid ONBOARDING_SOURCE %q", c.Onboarding.Source)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the identity API call timeout.
func (i IdentityConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// RefreshThreshold is how close to expiry a token may get before a lazy refresh.
func (s SessionConfig) RefreshThreshold() time.Duration {
	if s.RefreshThresholdMinutes <= 0 {
		return 0
	}
	return time.Duration(s.RefreshThresholdMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
