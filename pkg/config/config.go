package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (results store, optional)
	Database DatabaseConfig

	// Redis (shared data cache backend, optional)
	Redis RedisConfig

	// Market data sources
	Yahoo    YahooConfig
	FundFlow FundFlowConfig

	// Screening run defaults
	Screener ScreenerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
	CacheTTL time.Duration // 0 keeps snapshots until overwritten
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a results database was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// YahooConfig holds the chart API configuration used by the reference fetcher
type YahooConfig struct {
	BaseURL        string
	Proxy          string
	Timeout        time.Duration
	RequestsPerSec float64
}

// FundFlowConfig holds the fund ownership / fair value page configuration
type FundFlowConfig struct {
	BaseURL string
	Enabled bool
	Timeout time.Duration // pages are slower than the chart API
}

// ScreenerConfig holds process-level screening defaults
type ScreenerConfig struct {
	ProfilePath string // YAML run profile, empty means built-in defaults
	Exchange    string // INDIA is the primary exchange
	Workers     int
	Diagnostic  bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Prefix:   getEnv("REDIS_PREFIX", "screener"),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "0s"),
		},

		Yahoo: YahooConfig{
			BaseURL:        getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			Proxy:          getEnv("YAHOO_PROXY", ""),
			Timeout:        getEnvAsDuration("YAHOO_TIMEOUT", "20s"),
			RequestsPerSec: getEnvAsFloat("YAHOO_RPS", 8),
		},

		FundFlow: FundFlowConfig{
			BaseURL: getEnv("FUNDFLOW_BASE_URL", "https://www.morningstar.in/stocks"),
			Enabled: getEnvAsBool("FUNDFLOW_ENABLED", false),
			Timeout: getEnvAsDuration("FUNDFLOW_TIMEOUT", "20s"),
		},

		Screener: ScreenerConfig{
			ProfilePath: getEnv("SCREENER_PROFILE", ""),
			Exchange:    strings.ToUpper(getEnv("SCREENER_EXCHANGE", "INDIA")),
			Workers:     getEnvAsInt("SCREENER_WORKERS", 8),
			Diagnostic:  getEnvAsBool("SCREENER_DIAGNOSTIC", false),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Screener.Workers <= 0 {
		return fmt.Errorf("SCREENER_WORKERS must be > 0")
	}

	if c.Yahoo.RequestsPerSec <= 0 {
		return fmt.Errorf("YAHOO_RPS must be > 0")
	}

	return nil
}

// IsPrimaryExchange reports whether the configured exchange is the home market
func (c *Config) IsPrimaryExchange() bool {
	return c.Screener.Exchange == "INDIA"
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
