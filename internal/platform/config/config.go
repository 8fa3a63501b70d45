// Package config loads application configuration from environment variables
// and an optional config file. All variables use the SPEAKEASY_ prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SPEAKEASY"

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	AI             AIConfig
	Content        ContentConfig
	Telegram       TelegramConfig
	RateLimit      RateLimitConfig
	Log            LogConfig
	Timezone       string
	CurriculumPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// progress in memory.
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables caching and uses in-memory token budgets.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	Ollama           OllamaConfig
	OpenAI           OpenAIConfig
	DeepSeek         DeepSeekConfig
	OpenRouter       OpenRouterConfig
	Google           GoogleConfig
	DailyTokenBudget int64
	Timeout          time.Duration
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled   bool
	URL       string
	Model     string // lesson and quiz generation
	FastModel string // roleplay and conversation
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// ContentConfig holds lesson content generation settings.
type ContentConfig struct {
	CacheTTL time.Duration
}

// TelegramConfig holds Telegram Bot API settings. An empty token disables
// Telegram notifications.
type TelegramConfig struct {
	BotToken string
}

// RateLimitConfig limits AI-backed requests per learner.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.host":             "0.0.0.0",
	"server.shutdown_timeout": "15s",
	"database.url":            "",
	"database.max_conns":      25,
	"database.min_conns":      5,
	"database.auto_migrate":   true,
	"cache.url":               "",
	"ai.ollama.enabled":       false,
	"ai.ollama.url":           "http://localhost:11434",
	"ai.ollama.model":         "qwen2.5:72b",
	"ai.ollama.fast_model":    "qwen2.5:7b",
	"ai.openai.api_key":       "",
	"ai.openai.model":         "gpt-4o-mini",
	"ai.deepseek.api_key":     "",
	"ai.openrouter.api_key":   "",
	"ai.google.api_key":       "",
	"ai.google.model":         "gemini-2.5-flash",
	"ai.daily_token_budget":   200000,
	"ai.timeout":              "60s",
	"content.cache_ttl":       "24h",
	"telegram.bot_token":      "",
	"rate_limit.per_minute":   20,
	"rate_limit.burst":        5,
	"log.level":               "info",
	"log.format":              "json",
	"log.file":                "",
	"timezone":                "UTC",
	"curriculum_path":         "",
}

// Load reads configuration from SPEAKEASY_ environment variables. When
// SPEAKEASY_CONFIG_FILE is set, that file supplies values the environment
// does not override.
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("config_file")
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetInt("server.port"),
			Host:            v.GetString("server.host"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("database.url"),
			MaxConns:    v.GetInt("database.max_conns"),
			MinConns:    v.GetInt("database.min_conns"),
			AutoMigrate: v.GetBool("database.auto_migrate"),
		},
		Cache: CacheConfig{
			URL: v.GetString("cache.url"),
		},
		AI: AIConfig{
			Ollama: OllamaConfig{
				Enabled:   v.GetBool("ai.ollama.enabled"),
				URL:       v.GetString("ai.ollama.url"),
				Model:     v.GetString("ai.ollama.model"),
				FastModel: v.GetString("ai.ollama.fast_model"),
			},
			OpenAI: OpenAIConfig{
				APIKey: v.GetString("ai.openai.api_key"),
				Model:  v.GetString("ai.openai.model"),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: v.GetString("ai.deepseek.api_key"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: v.GetString("ai.openrouter.api_key"),
			},
			Google: GoogleConfig{
				APIKey: v.GetString("ai.google.api_key"),
				Model:  v.GetString("ai.google.model"),
			},
			DailyTokenBudget: v.GetInt64("ai.daily_token_budget"),
			Timeout:          v.GetDuration("ai.timeout"),
		},
		Content: ContentConfig{
			CacheTTL: v.GetDuration("content.cache_ttl"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram.bot_token"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: v.GetInt("rate_limit.per_minute"),
			Burst:     v.GetInt("rate_limit.burst"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		Timezone:       v.GetString("timezone"),
		CurriculumPath: v.GetString("curriculum_path"),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SPEAKEASY_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("SPEAKEASY_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("SPEAKEASY_RATE_LIMIT values must not be negative")
	}
	if c.AI.DailyTokenBudget < 0 {
		return fmt.Errorf("SPEAKEASY_AI_DAILY_TOKEN_BUDGET must not be negative, got %d", c.AI.DailyTokenBudget)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("SPEAKEASY_DATABASE_MIN_CONNS (%d) exceeds SPEAKEASY_DATABASE_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// Location returns the time zone used to bucket learning activity into days.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SPEAKEASY_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HasAIProvider returns true if at least one AI provider is configured.
// Without one, lesson content always uses the static fallback.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}
