package config

import (
	"fmt"
	"os"
	"time"

	"docintel/internal/logger"
)

// Auth modes accepted by the layout analyzer.
const (
	AuthModeManagedIdentity = "managed_identity"
	AuthModeKey             = "key"
)

type Config struct {
	// Document Intelligence Configuration
	Endpoint string
	APIKey   string
	AuthMode string

	// Interactive browser credential configuration (managed identity fallback)
	TenantID string
	ClientID string

	// Google Document AI Configuration (alternate provider)
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// HTTP Server Configuration
	ServerHost string
	ServerPort string

	// Result cache TTL for repeated uploads of the same document
	CacheTTL time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		Endpoint:                   getEnv("DOCUMENT_INTELLIGENCE_ENDPOINT", ""),
		APIKey:                     getEnv("DOCUMENT_INTELLIGENCE_KEY", ""),
		AuthMode:                   getEnv("DOCINTEL_AUTH_MODE", AuthModeManagedIdentity),
		TenantID:                   getEnv("AZURE_TENANT_ID", "organizations"),
		ClientID:                   getEnv("AZURE_CLIENT_ID", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		ServerHost:                 getEnv("DOCINTEL_HOST", "127.0.0.1"),
		ServerPort:                 getEnv("DOCINTEL_PORT", "8080"),
		CacheTTL:                   getDurationEnv("DOCINTEL_CACHE_TTL", time.Hour),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.AuthMode != AuthModeManagedIdentity && c.AuthMode != AuthModeKey {
		return fmt.Errorf("DOCINTEL_AUTH_MODE must be %q or %q, got %q",
			AuthModeManagedIdentity, AuthModeKey, c.AuthMode)
	}
	// A missing API key in key mode is surfaced at call time as a credential
	// error, so an explicit flag can still supply it.
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
