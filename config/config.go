package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds file and environment driven configuration values.
// Secrets (JWT secret, API keys, bot tokens) have no defaults and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: "mysql" or "sqlite"
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for caching and the sweep lock
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Generation (OpenAI compatible endpoint)
	OpenAIAPIKey         string
	LLMModel             string
	LLMBaseURL           string
	LLMTimeout           time.Duration
	LLMMaxRetries        int
	LLMRequestsPerMinute int
	LLMEnrichConcurrency int
	LLMTemperature       float64
	DecomposeRetryFailed int
	// Insight sweep
	InsightsEnabled       bool
	InsightsInterval      time.Duration
	InsightsSprintTimeout time.Duration
	InsightsConcurrency   int
	InsightsAllowOverlap  bool
	// Streak arithmetic: "calendar" or "day_of_month"
	StreakDayMode string
	Timezone      string
	// Stats view cache
	StatsCacheTTL time.Duration
	// Optional insight notifications
	TelegramBotToken string
	TelegramChatID   int64
}

// DefaultConfigPath is read when present; a missing file is not an error.
var DefaultConfigPath = filepath.Join("config", "config.json")

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// envBindings maps config keys onto environment variable names.
var envBindings = map[string]string{
	"app.port":                  "APP_PORT",
	"app.jwt_secret":            "JWT_SECRET",
	"app.rate_limit_per_minute": "RATE_LIMIT_PER_MINUTE",
	"app.allowed_origins":       "CORS_ALLOWED_ORIGINS",
	"gin.mode":                  "GIN_MODE",
	"gin.log_path":              "GIN_PATH",
	"database.driver":           "DB_DRIVER",
	"database.uri":              "DATABASE_URI",
	"database.host":             "DB_HOST",
	"database.port":             "DB_PORT",
	"database.user":             "DB_USER",
	"database.password":         "DB_PASSWORD",
	"database.name":             "DB_NAME",
	"redis.enabled":             "REDIS_ENABLED",
	"redis.host":                "REDIS_HOST",
	"redis.port":                "REDIS_PORT",
	"redis.db":                  "REDIS_DB",
	"redis.password":            "REDIS_PASSWORD",
	"log.level":                 "LOG_LEVEL",
	"log.path":                  "LOG_PATH",
	"log.max_size_mb":           "LOG_MAX_SIZE_MB",
	"log.max_backups":           "LOG_MAX_BACKUPS",
	"log.max_age_days":          "LOG_MAX_AGE_DAYS",
	"log.compress":              "LOG_COMPRESS",
	"llm.api_key":               "OPENAI_API_KEY",
	"llm.model":                 "LLM_MODEL",
	"llm.base_url":              "LLM_BASE_URL",
	"llm.timeout":               "LLM_TIMEOUT",
	"llm.max_retries":           "LLM_MAX_RETRIES",
	"llm.requests_per_minute":   "LLM_REQUESTS_PER_MINUTE",
	"llm.enrich_concurrency":    "LLM_ENRICH_CONCURRENCY",
	"llm.temperature":           "LLM_TEMPERATURE",
	"llm.retry_failed":          "DECOMPOSE_RETRY_FAILED",
	"insights.enabled":          "INSIGHTS_ENABLED",
	"insights.interval":         "INSIGHTS_INTERVAL",
	"insights.sprint_timeout":   "INSIGHTS_SPRINT_TIMEOUT",
	"insights.concurrency":      "INSIGHTS_CONCURRENCY",
	"insights.allow_overlap":    "INSIGHTS_ALLOW_OVERLAP",
	"streak.day_mode":           "STREAK_DAY_MODE",
	"streak.timezone":           "TIMEZONE",
	"cache.stats_ttl":           "STATS_CACHE_TTL",
	"telegram.bot_token":        "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":          "TELEGRAM_CHAT_ID",
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.rate_limit_per_minute", 60)
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.log_path", "logs/go_gin.log")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "learnsprint")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("llm.enrich_concurrency", 8)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.retry_failed", 0)
	v.SetDefault("insights.enabled", true)
	v.SetDefault("insights.interval", "1h")
	v.SetDefault("insights.sprint_timeout", "2m")
	v.SetDefault("insights.concurrency", 1)
	v.SetDefault("insights.allow_overlap", false)
	v.SetDefault("streak.day_mode", "calendar")
	v.SetDefault("streak.timezone", "Local")
	v.SetDefault("cache.stats_ttl", "5m")
}

// Load reads configuration once. Precedence: defaults -> config/config.json -> environment variables.
func Load() (AppConfig, error) {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg, nil
	}
	c, err := LoadFrom(DefaultConfigPath)
	if err != nil {
		return AppConfig{}, err
	}
	cfg = c
	loaded = true
	return cfg, nil
}

// LoadFrom builds a configuration from the given JSON file (optional) plus environment overrides.
func LoadFrom(path string) (AppConfig, error) {
	v := viper.New()
	applyDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	c := AppConfig{
		AppPort:               v.GetString("app.port"),
		JWTSecret:             v.GetString("app.jwt_secret"),
		RateLimitPerMinute:    v.GetInt("app.rate_limit_per_minute"),
		AllowedOrigins:        readList(v, "app.allowed_origins"),
		GinMode:               v.GetString("gin.mode"),
		GinPath:               v.GetString("gin.log_path"),
		DBDriver:              strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:           v.GetString("database.uri"),
		DBHost:                v.GetString("database.host"),
		DBPort:                v.GetString("database.port"),
		DBUser:                v.GetString("database.user"),
		DBPassword:            v.GetString("database.password"),
		DBName:                v.GetString("database.name"),
		RedisEnabled:          v.GetBool("redis.enabled"),
		RedisHost:             v.GetString("redis.host"),
		RedisPort:             v.GetInt("redis.port"),
		RedisDB:               v.GetInt("redis.db"),
		RedisPassword:         v.GetString("redis.password"),
		LogLevel:              v.GetString("log.level"),
		LogPath:               v.GetString("log.path"),
		LogMaxSizeMB:          v.GetInt("log.max_size_mb"),
		LogMaxBackups:         v.GetInt("log.max_backups"),
		LogMaxAgeDays:         v.GetInt("log.max_age_days"),
		LogCompress:           v.GetBool("log.compress"),
		OpenAIAPIKey:          v.GetString("llm.api_key"),
		LLMModel:              v.GetString("llm.model"),
		LLMBaseURL:            v.GetString("llm.base_url"),
		LLMTimeout:            v.GetDuration("llm.timeout"),
		LLMMaxRetries:         v.GetInt("llm.max_retries"),
		LLMRequestsPerMinute:  v.GetInt("llm.requests_per_minute"),
		LLMEnrichConcurrency:  v.GetInt("llm.enrich_concurrency"),
		LLMTemperature:        v.GetFloat64("llm.temperature"),
		DecomposeRetryFailed:  v.GetInt("llm.retry_failed"),
		InsightsEnabled:       v.GetBool("insights.enabled"),
		InsightsInterval:      v.GetDuration("insights.interval"),
		InsightsSprintTimeout: v.GetDuration("insights.sprint_timeout"),
		InsightsConcurrency:   v.GetInt("insights.concurrency"),
		InsightsAllowOverlap:  v.GetBool("insights.allow_overlap"),
		StreakDayMode:         strings.ToLower(v.GetString("streak.day_mode")),
		Timezone:              v.GetString("streak.timezone"),
		StatsCacheTTL:         v.GetDuration("cache.stats_ttl"),
		TelegramBotToken:      v.GetString("telegram.bot_token"),
		TelegramChatID:        v.GetInt64("telegram.chat_id"),
	}

	if err := c.validate(); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

func (c AppConfig) validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	switch c.StreakDayMode {
	case "calendar", "day_of_month":
	default:
		return fmt.Errorf("unsupported streak day mode %q", c.StreakDayMode)
	}
	if c.InsightsInterval <= 0 {
		return errors.New("insights interval must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequireJWTSecret fails when no signing secret is configured.
func (c AppConfig) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set in the config file or environment")
	}
	return nil
}

// Location resolves the timezone used for calendar-day arithmetic.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// readList accepts either a JSON array or a comma separated env value.
func readList(v *viper.Viper, key string) []string {
	raw := v.GetStringSlice(key)
	items := []string{}
	for _, entry := range raw {
		for _, item := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}
