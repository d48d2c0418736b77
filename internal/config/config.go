package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	WebinarFuel WebinarFuelConfig `yaml:"webinarfuel"`
	AI          AIConfig          `yaml:"ai"`
	Auth        AuthConfig        `yaml:"auth"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings for the analytics counters
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WebinarFuelConfig holds WebinarFuel API credentials
type WebinarFuelConfig struct {
	BaseURL        string `yaml:"base_url"`
	BearerToken    string `yaml:"bearer_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the API client timeout as a duration
func (w WebinarFuelConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// AIConfig holds page-generation provider settings. The Anthropic API is
// the primary provider; Bedrock acts as a fallback when enabled.
type AIConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	BedrockEnabled  bool   `yaml:"bedrock_enabled"`
	BedrockModelID  string `yaml:"bedrock_model_id"`
	BedrockRegion   string `yaml:"bedrock_region"`
	MaxTokens       int    `yaml:"max_tokens"`
}

// AuthConfig holds Google OAuth authentication configuration
type AuthConfig struct {
	Enabled            bool   `yaml:"enabled"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	AllowedDomain      string `yaml:"allowed_domain"`
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
}

// AnalyticsConfig holds view/submission counter settings
type AnalyticsConfig struct {
	FlushIntervalSeconds int `yaml:"flush_interval_seconds"`
}

// FlushInterval returns the counter flush interval as a duration
func (a AnalyticsConfig) FlushInterval() time.Duration {
	return time.Duration(a.FlushIntervalSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.WebinarFuel.BaseURL == "" {
		cfg.WebinarFuel.BaseURL = "https://api.webinarfuel.com"
	}
	if cfg.WebinarFuel.TimeoutSeconds == 0 {
		cfg.WebinarFuel.TimeoutSeconds = 30
	}
	if cfg.AI.AnthropicModel == "" {
		cfg.AI.AnthropicModel = "claude-sonnet-4-20250514"
	}
	if cfg.AI.BedrockModelID == "" {
		cfg.AI.BedrockModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.AI.BedrockRegion == "" {
		cfg.AI.BedrockRegion = "us-east-1"
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 8192
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "funnel_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}
	if cfg.Analytics.FlushIntervalSeconds == 0 {
		cfg.Analytics.FlushIntervalSeconds = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if token := os.Getenv("WEBINARFUEL_BEARER_TOKEN"); token != "" {
		cfg.WebinarFuel.BearerToken = token
	}
	if baseURL := os.Getenv("WEBINARFUEL_BASE_URL"); baseURL != "" {
		cfg.WebinarFuel.BaseURL = baseURL
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.AI.AnthropicAPIKey = apiKey
	}
	if model := os.Getenv("ANTHROPIC_MODEL"); model != "" {
		cfg.AI.AnthropicModel = model
	}
	if v := os.Getenv("BEDROCK_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.AI.BedrockEnabled = enabled
		}
	}

	// Auth overrides
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	return cfg, nil
}
