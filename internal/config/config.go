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
)

// Config holds all configuration for the application
type Config struct {
	OpenRouter OpenRouterConfig
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Cache      CacheConfig
	Data       DataConfig
	Logging    LoggingConfig
	Batch      BatchConfig
}

// OpenRouterConfig holds generation provider configuration
type OpenRouterConfig struct {
	APIKey            string
	APIBase           string
	DefaultModel      string
	FallbackModels    []string
	MaxFallbacks      int // only the first N fallbacks are tried
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float64
	HTTPReferer       string
	AppTitle          string
	DailyRequestLimit int
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	Schema             string
	MaxConnections     int
	MaxIdleConnections int
	QueryTimeout       time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// CacheConfig holds TTLs and sweep thresholds for the in-process caches
type CacheConfig struct {
	ResponseTTL      time.Duration
	ResponseCapacity int
	ParseTTL         time.Duration
	ParseCapacity    int
	DataTTL          time.Duration
	DataCapacity     int
}

// DataConfig controls the market data provider
type DataConfig struct {
	SyntheticFallback bool
	SyntheticSeed     int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// BatchConfig holds batch runner configuration
type BatchConfig struct {
	Workers int
}

// Load reads configuration from environment variables. Values that fail to
// parse are reported together in the returned error.
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	l := &loader{}
	cfg := &Config{
		OpenRouter: OpenRouterConfig{
			APIKey:       getEnv("OPENROUTER_API_KEY", ""),
			APIBase:      getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			DefaultModel: getEnv("DEFAULT_FREE_MODEL", "meta-llama/llama-3.1-8b-instruct:free"),
			FallbackModels: getEnvAsList("FALLBACK_MODELS", []string{
				"deepseek/deepseek-r1:free",
				"qwen/qwen-plus:free",
				"microsoft/phi-3-medium-128k-instruct:free",
			}),
			MaxFallbacks:      l.getEnvAsInt("MAX_FALLBACK_MODELS", 2),
			Timeout:           l.getEnvAsSeconds("OPENROUTER_TIMEOUT", 15),
			MaxTokens:         l.getEnvAsInt("MAX_TOKENS", 300),
			Temperature:       l.getEnvAsFloat("TEMPERATURE", 0.3),
			HTTPReferer:       getEnv("OPENROUTER_HTTP_REFERER", "https://github.com/marketinsights"),
			AppTitle:          getEnv("OPENROUTER_APP_TITLE", "Real Estate Market Insights"),
			DailyRequestLimit: l.getEnvAsInt("DAILY_REQUEST_LIMIT", 50),
		},
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               l.getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "real_estate"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			Schema:             getEnv("PG_SCHEMA", "real_estate"),
			MaxConnections:     l.getEnvAsInt("PG_MAX_CONNECTIONS", 10),
			MaxIdleConnections: l.getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			QueryTimeout:       l.getEnvAsSeconds("PG_QUERY_TIMEOUT", 10),
		},
		Server: ServerConfig{
			Port:           l.getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Cache: CacheConfig{
			ResponseTTL:      l.getEnvAsSeconds("CACHE_TTL", 900),
			ResponseCapacity: l.getEnvAsInt("CACHE_CAPACITY", 1000),
			ParseTTL:         l.getEnvAsSeconds("PARSE_CACHE_TTL", 3600),
			ParseCapacity:    l.getEnvAsInt("PARSE_CACHE_CAPACITY", 1000),
			DataTTL:          l.getEnvAsSeconds("DATA_CACHE_TTL", 3600),
			DataCapacity:     l.getEnvAsInt("DATA_CACHE_CAPACITY", 500),
		},
		Data: DataConfig{
			SyntheticFallback: l.getEnvAsBool("SYNTHETIC_DATA_FALLBACK", true),
			SyntheticSeed:     int64(l.getEnvAsInt("SYNTHETIC_DATA_SEED", 42)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Batch: BatchConfig{
			Workers: l.getEnvAsInt("BATCH_WORKERS", 5),
		},
	}

	if err := l.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenerationEnabled reports whether an API key is configured
func (c *Config) GenerationEnabled() bool {
	return c.OpenRouter.APIKey != ""
}

// Models returns the default model followed by the fallbacks that will be tried
func (c *OpenRouterConfig) Models() []string {
	models := []string{c.DefaultModel}
	fallbacks := c.FallbackModels
	if c.MaxFallbacks >= 0 && len(fallbacks) > c.MaxFallbacks {
		fallbacks = fallbacks[:c.MaxFallbacks]
	}
	return append(models, fallbacks...)
}

// DatabaseConfigured reports whether any connection settings were given
func (c *Config) DatabaseConfigured() bool {
	return c.PostgreSQL.DSN != "" || os.Getenv("PG_HOST") != ""
}

// GetPostgreSQLDSN returns PostgreSQL connection string with the schema on
// the search path
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return withSearchPath(c.PostgreSQL.DSN, c.PostgreSQL.Schema)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
	return withSearchPath(dsn, c.PostgreSQL.Schema)
}

func withSearchPath(dsn, schema string) string {
	if schema == "" || strings.Contains(dsn, "search_path") {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + url.QueryEscape(schema)
	}
	return dsn + " search_path=" + schema
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type loader struct {
	errs []error
}

func (l *loader) err() error {
	return errors.Join(l.errs...)
}

func (l *loader) getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid integer value for %s: %q", key, valueStr))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid float value for %s: %q", key, valueStr))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid boolean value for %s: %q", key, valueStr))
		return defaultValue
	}
	return value
}

// getEnvAsSeconds reads a whole number of seconds
func (l *loader) getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(l.getEnvAsInt(key, defaultSeconds)) * time.Second
}
