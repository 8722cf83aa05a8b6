package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	HighLevel    HighLevelConfig
	Redis        RedisConfig
	Cache        CacheConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	CRM          *CRMTable
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// PublicURL is the externally visible base URL of this service; CRM paging links are rewritten onto it.
	PublicURL        string
	HyperlinkBaseURL string
}

// HighLevelConfig holds the CRM API coordinates.
type HighLevelConfig struct {
	BaseURL        string
	Token          string
	Version        string
	LocationID     string
	PipelineID     string
	TimeoutSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls read-through cache lifetimes.
type CacheConfig struct {
	ContactTTLSeconds  int
	PipelineTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	Env   string
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	JWTSecret                string
	AccessTokenTTLMinutes    int
	RefreshTokenTTLMinutes   int
	HyperlinkTokenTTLMinutes int
}

// NotificationConfig holds outbound notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	crm, err := LoadCRMTable(os.Getenv("CRM_TABLE_FILE"))
	if err != nil {
		return nil, fmt.Errorf("load crm table: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "orders-bff"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicURL:             strings.TrimRight(getEnv("API_URL", "http://localhost:8080"), "/"),
			HyperlinkBaseURL:      strings.TrimRight(os.Getenv("HYPERLINK_BASE_URL"), "/"),
		},
		HighLevel: HighLevelConfig{
			BaseURL:        strings.TrimRight(getEnv("HIGHLEVEL_API_URL", "https://services.leadconnectorhq.com"), "/"),
			Token:          os.Getenv("HIGHLEVEL_TOKEN_API"),
			Version:        getEnv("HIGHLEVEL_VERSION", "2021-07-28"),
			LocationID:     os.Getenv("HIGHLEVEL_LOCATION_ID"),
			PipelineID:     os.Getenv("HIGHLEVEL_PIPELINE_ID"),
			TimeoutSeconds: getEnvAsInt("HIGHLEVEL_TIMEOUT_SECONDS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			ContactTTLSeconds:  getEnvAsInt("CACHE_CONTACT_TTL_SECONDS", 60),
			PipelineTTLSeconds: getEnvAsInt("CACHE_PIPELINE_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "development"),
		},
		Auth: AuthConfig{
			JWTSecret:                getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:    getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLMinutes:   getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_MINUTES", 7*24*60),
			HyperlinkTokenTTLMinutes: getEnvAsInt("AUTH_HYPERLINK_TOKEN_TTL_MINUTES", 24*60),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		CRM: crm,
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

// Timeout returns the HTTP client timeout for CRM calls.
func (h HighLevelConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// ContactTTL returns how long a revalidated contact stays cached.
func (c CacheConfig) ContactTTL() time.Duration {
	return time.Duration(c.ContactTTLSeconds) * time.Second
}

// PipelineTTL returns how long pipelines stay cached.
func (c CacheConfig) PipelineTTL() time.Duration {
	return time.Duration(c.PipelineTTLSeconds) * time.Second
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
