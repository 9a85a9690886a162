package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Season types accepted by the stats API.
const (
	SeasonTypeRegular  = "Regular Season"
	SeasonTypePlayoffs = "Playoffs"
	SeasonTypePre      = "Pre Season"
	SeasonTypeAllStar  = "All Star"
)

// Transports for reaching the stats API.
const (
	TransportHTTP    = "http"
	TransportBrowser = "browser"
)

// StatsConfig controls how the stats API is reached.
type StatsConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Transport       string        `yaml:"transport"`
	RequestInterval time.Duration `yaml:"request_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// RedisConfig enables the response cache and event publisher when URL is set.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig holds REST API settings.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	RateLimit      float64  `yaml:"rate_limit"`
	Burst          int      `yaml:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// DailySweepHour queues a teams sweep at this local hour; -1 disables it.
	DailySweepHour     int `yaml:"daily_sweep_hour"`
	DailySweepDaysBack int `yaml:"daily_sweep_days_back"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds all application configuration
type Config struct {
	DataDir     string       `yaml:"data_dir"`
	Season      string       `yaml:"season"`
	SeasonType  string       `yaml:"season_type"`
	DatabaseDSN string       `yaml:"database_dsn"`
	Stats       StatsConfig  `yaml:"stats"`
	Redis       RedisConfig  `yaml:"redis"`
	Server      ServerConfig `yaml:"server"`
	Log         LogConfig    `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:    "nba_data",
		Season:     "2024-25",
		SeasonType: SeasonTypeRegular,
		Stats: StatsConfig{
			BaseURL:         "https://stats.nba.com/stats",
			Transport:       TransportHTTP,
			RequestInterval: time.Second,
			RequestTimeout:  30 * time.Second,
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: 6 * time.Hour,
		},
		Server: ServerConfig{
			Port:               "8080",
			RateLimit:          5,
			Burst:              10,
			AllowedOrigins:     []string{"*"},
			DailySweepHour:     -1,
			DailySweepDaysBack: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// COURTSIDE_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if st, err := NormalizeSeasonType(cfg.SeasonType); err == nil {
		cfg.SeasonType = st
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("COURTSIDE_DATA_DIR", c.DataDir)
	c.Season = getEnv("COURTSIDE_SEASON", c.Season)
	c.SeasonType = getEnv("COURTSIDE_SEASON_TYPE", c.SeasonType)
	c.DatabaseDSN = getEnv("COURTSIDE_DATABASE_DSN", c.DatabaseDSN)

	c.Stats.BaseURL = getEnv("COURTSIDE_STATS_BASE_URL", c.Stats.BaseURL)
	c.Stats.Transport = getEnv("COURTSIDE_TRANSPORT", c.Stats.Transport)
	c.Stats.RequestInterval = getEnvDuration("COURTSIDE_REQUEST_INTERVAL", c.Stats.RequestInterval)
	c.Stats.RequestTimeout = getEnvDuration("COURTSIDE_REQUEST_TIMEOUT", c.Stats.RequestTimeout)
	c.Stats.MaxRetries = getEnvInt("COURTSIDE_MAX_RETRIES", c.Stats.MaxRetries)
	c.Stats.RetryDelay = getEnvDuration("COURTSIDE_RETRY_DELAY", c.Stats.RetryDelay)

	c.Redis.URL = getEnv("COURTSIDE_REDIS_URL", c.Redis.URL)
	c.Redis.CacheTTL = getEnvDuration("COURTSIDE_CACHE_TTL", c.Redis.CacheTTL)

	c.Server.Port = getEnv("COURTSIDE_REST_PORT", c.Server.Port)
	c.Server.RateLimit = getEnvFloat("COURTSIDE_API_RATE_LIMIT", c.Server.RateLimit)
	c.Server.Burst = getEnvInt("COURTSIDE_API_BURST", c.Server.Burst)
	if origins := os.Getenv("COURTSIDE_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Server.DailySweepHour = getEnvInt("COURTSIDE_DAILY_SWEEP_HOUR", c.Server.DailySweepHour)
	c.Server.DailySweepDaysBack = getEnvInt("COURTSIDE_DAILY_SWEEP_DAYS_BACK", c.Server.DailySweepDaysBack)

	c.Log.Level = getEnv("COURTSIDE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("COURTSIDE_LOG_FORMAT", c.Log.Format)
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.Stats.RequestInterval <= 0 {
		return fmt.Errorf("request_interval must be positive, got %v", c.Stats.RequestInterval)
	}
	if c.Stats.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.Stats.MaxRetries)
	}
	switch c.Stats.Transport {
	case TransportHTTP, TransportBrowser:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Stats.Transport, TransportHTTP, TransportBrowser)
	}
	if _, err := NormalizeSeasonType(c.SeasonType); err != nil {
		return err
	}
	if c.Server.DailySweepHour < -1 || c.Server.DailySweepHour > 23 {
		return fmt.Errorf("daily_sweep_hour must be -1 or 0-23, got %d", c.Server.DailySweepHour)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}

// NormalizeSeasonType maps user input such as "playoffs" or "regular" to the
// exact string the stats API expects.
func NormalizeSeasonType(s string) (string, error) {
	key := strings.ToLower(strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(s)), " "))
	switch key {
	case "regular season", "regular", "":
		return SeasonTypeRegular, nil
	case "playoffs", "playoff", "postseason":
		return SeasonTypePlayoffs, nil
	case "pre season", "preseason":
		return SeasonTypePre, nil
	case "all star", "allstar":
		return SeasonTypeAllStar, nil
	}
	return "", fmt.Errorf("unknown season type %q", s)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
