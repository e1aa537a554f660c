package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store driver names accepted by TOKEN_STORE_DRIVER.
const (
	StoreDriverDynamoDB = "dynamodb"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// Token formats accepted by TOKEN_FORMAT.
const (
	TokenFormatOpaque = "opaque"
	TokenFormatJWT    = "jwt"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	AWS      AWSConfig
	Cognito  CognitoConfig
	Store    StoreConfig
	Token    TokenConfig
	Issuance IssuanceConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Hooks    HookConfig
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

// AWSConfig holds shared AWS client settings.
type AWSConfig struct {
	Region      string
	EndpointURL string
}

// CognitoConfig identifies the user pool acting as identity provider.
type CognitoConfig struct {
	UserPoolID string
}

// StoreConfig selects and parameterizes the token store backend.
type StoreConfig struct {
	Driver      string
	TableName   string
	CreateTable bool
}

// TokenConfig controls how tokens and their records are built.
type TokenConfig struct {
	TTLSeconds int
	Format     string
	JWTSecret  string
	// Projection limits which fetched attributes are persisted.
	// Empty means persist the full set verbatim.
	Projection []string
}

// IssuanceConfig bounds orchestrator retries.
type IssuanceConfig struct {
	FetchMaxAttempts     int
	StoreMaxAttempts     int
	CollisionMaxAttempts int
	BackoffInitialMillis int
	BackoffMaxMillis     int
}

// PostgresConfig holds DB connection values for the postgres store driver.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the redis store driver.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// HookConfig gates post-issuance downstream notifications.
type HookConfig struct {
	WebhookURL   string
	NotifyIssued bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("TOKEN_STORE_DRIVER", StoreDriverDynamoDB))
	switch driver {
	case StoreDriverDynamoDB, StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid TOKEN_STORE_DRIVER: %q", driver)
	}

	format := strings.ToLower(getEnv("TOKEN_FORMAT", TokenFormatOpaque))
	switch format {
	case TokenFormatOpaque, TokenFormatJWT:
	default:
		return nil, fmt.Errorf("invalid TOKEN_FORMAT: %q", format)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-token-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		AWS: AWSConfig{
			Region:      getEnv("AWS_REGION", "us-east-1"),
			EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
		},
		Cognito: CognitoConfig{
			UserPoolID: os.Getenv("COGNITO_USER_POOL_ID"),
		},
		Store: StoreConfig{
			Driver:      driver,
			TableName:   getEnv("TOKEN_TABLE_NAME", "auth-tokens"),
			CreateTable: getEnvAsBool("TOKEN_STORE_CREATE_TABLE", false),
		},
		Token: TokenConfig{
			TTLSeconds: getEnvAsInt("TOKEN_TTL_SECONDS", 0),
			Format:     format,
			JWTSecret:  getEnv("TOKEN_JWT_SECRET", "dev-secret"),
			Projection: splitCSV(os.Getenv("TOKEN_ATTRIBUTE_PROJECTION")),
		},
		Issuance: IssuanceConfig{
			FetchMaxAttempts:     getEnvAsInt("ISSUE_FETCH_MAX_ATTEMPTS", 3),
			StoreMaxAttempts:     getEnvAsInt("ISSUE_STORE_MAX_ATTEMPTS", 3),
			CollisionMaxAttempts: getEnvAsInt("ISSUE_COLLISION_MAX_ATTEMPTS", 3),
			BackoffInitialMillis: getEnvAsInt("ISSUE_BACKOFF_INITIAL_MS", 100),
			BackoffMaxMillis:     getEnvAsInt("ISSUE_BACKOFF_MAX_MS", 2000),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Hooks: HookConfig{
			WebhookURL:   getEnv("HOOK_WEBHOOK_URL", ""),
			NotifyIssued: getEnvAsBool("HOOK_NOTIFY_ISSUED", false),
		},
	}

	if cfg.Store.Driver == StoreDriverDynamoDB && cfg.Store.TableName == "" {
		return nil, fmt.Errorf("TOKEN_TABLE_NAME required for dynamodb store")
	}
	if cfg.Store.Driver == StoreDriverPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN required for postgres store")
	}

	return cfg, nil
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

// TTL returns the configured token lifetime, zero when tokens never expire.
func (t TokenConfig) TTL() time.Duration {
	if t.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(t.TTLSeconds) * time.Second
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
