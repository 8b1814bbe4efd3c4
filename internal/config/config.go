// Package config provides configuration loading for the game builder service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the service.
type Config struct {
	// Server settings
	Port           int
	Host           string
	AllowedOrigins []string

	// Persistence
	DatabasePath string

	// Sandbox provisioning service (remote dev servers + git repos)
	SandboxURL     string
	SandboxAPIKey  string
	SandboxTimeout time.Duration

	// Model provider
	AnthropicAPIKey string
	ModelName       string
	ModelMaxTokens  int

	// Auth (optional; when JWKSEndpoint is empty, requests are unauthenticated)
	JWKSEndpoint string
	JWTAudience  string
	JWTIssuer    string

	// Browser sessions
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration

	// App creation
	TemplateRepoURL string

	// Error reporting (optional; empty URL disables it)
	ErrorReportURL   string
	ErrorReportToken string

	// Stream lifecycle
	StreamStopWait     time.Duration
	StreamPollInterval time.Duration
	StreamBufferLimit  int

	// HTTP server timeouts
	HTTPReadTimeout time.Duration
	HTTPIdleTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		Host:           getEnv("HOST", "0.0.0.0"),
		AllowedOrigins: getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"}),

		DatabasePath: getEnv("DATABASE_PATH", "data/gamebuilder.db"),

		SandboxURL:     getEnv("SANDBOX_URL", ""),
		SandboxAPIKey:  getEnv("SANDBOX_API_KEY", ""),
		SandboxTimeout: getEnvDuration("SANDBOX_TIMEOUT", 30*time.Second),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		ModelName:       getEnv("MODEL_NAME", "claude-3-7-sonnet-20250219"),
		ModelMaxTokens:  getEnvInt("MODEL_MAX_TOKENS", 8192),

		JWKSEndpoint: getEnv("JWKS_ENDPOINT", ""),
		JWTAudience:  getEnv("JWT_AUDIENCE", "gamebuilder"),
		JWTIssuer:    getEnv("JWT_ISSUER", ""),

		CookieName:   getEnv("COOKIE_NAME", "builder_session"),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		SessionTTL:   getEnvDuration("SESSION_TTL", 24*time.Hour),

		TemplateRepoURL: getEnv("TEMPLATE_REPO_URL", "https://github.com/phaserjs/template-vite"),

		ErrorReportURL:   getEnv("ERROR_REPORT_URL", ""),
		ErrorReportToken: getEnv("ERROR_REPORT_TOKEN", ""),

		StreamStopWait:     getEnvDuration("STREAM_STOP_WAIT", 10*time.Second),
		StreamPollInterval: getEnvDuration("STREAM_POLL_INTERVAL", 200*time.Millisecond),
		StreamBufferLimit:  getEnvInt("STREAM_BUFFER_LIMIT", 4096),

		HTTPReadTimeout: getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPIdleTimeout: getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}

	if cfg.SandboxURL == "" {
		return nil, fmt.Errorf("SANDBOX_URL is required")
	}

	if cfg.StreamPollInterval <= 0 {
		return nil, fmt.Errorf("STREAM_POLL_INTERVAL must be positive")
	}
	if cfg.StreamStopWait < cfg.StreamPollInterval {
		return nil, fmt.Errorf("STREAM_STOP_WAIT must be at least STREAM_POLL_INTERVAL")
	}

	// Derive JWT issuer from the JWKS endpoint host if not explicitly set.
	if cfg.JWKSEndpoint != "" && cfg.JWTIssuer == "" {
		cfg.JWTIssuer = strings.TrimSuffix(cfg.JWKSEndpoint, "/.well-known/jwks.json")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvStringSlice returns a slice from a comma-separated environment variable.
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
