package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Identity      IdentityConfig
	Provider      ProviderConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StorageConfig holds KV table and blob bucket configuration
type StorageConfig struct {
	// MainTable is the wide table holding users, files, conversations
	// and messages under composite keys.
	MainTable string
	// FilesBucket is the blob bucket backing file uploads.
	FilesBucket string
	// Region for the DynamoDB and S3 clients.
	Region string
	// ReconcileSchedule is a cron expression for the orphaned-blob
	// sweep; empty disables it.
	ReconcileSchedule string
}

// IdentityConfig holds identity provider configuration
type IdentityConfig struct {
	UserPoolID       string
	UserPoolClientID string
	Region           string
}

// ProviderConfig holds LLM provider configuration
type ProviderConfig struct {
	// BedrockRegion must host the cross-region inference profiles that
	// the us.* model identifiers target.
	BedrockRegion string
	GeminiAPIKey  string
	// InvokeTimeout bounds a single provider call.
	InvokeTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CONNECTIVE_HOST", "0.0.0.0"),
			Port:            getEnv("CONNECTIVE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CONNECTIVE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CONNECTIVE_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:     getEnvDuration("CONNECTIVE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CONNECTIVE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CONNECTIVE_HEALTH_PORT", "9090"),
		},
		Storage: StorageConfig{
			MainTable:         getEnv("MAIN_TABLE", ""),
			FilesBucket:       getEnv("FILES_BUCKET", ""),
			Region:            getEnv("AWS_REGION", "us-east-1"),
			ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", ""),
		},
		Identity: IdentityConfig{
			UserPoolID:       getEnv("USER_POOL_ID", ""),
			UserPoolClientID: getEnv("USER_POOL_CLIENT_ID", ""),
			Region:           getEnv("AWS_REGION", "us-east-1"),
		},
		Provider: ProviderConfig{
			BedrockRegion: getEnv("BEDROCK_REGION", "us-east-1"),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			InvokeTimeout: getEnvDuration("CONNECTIVE_INVOKE_TIMEOUT", 60*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("CONNECTIVE_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("CONNECTIVE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("CONNECTIVE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("CONNECTIVE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("CONNECTIVE_OTEL_SERVICE_NAME", "connective"),
			OTelServiceVersion: getEnv("CONNECTIVE_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("CONNECTIVE_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.MainTable == "" {
		return fmt.Errorf("MAIN_TABLE is required")
	}
	if c.Storage.FilesBucket == "" {
		return fmt.Errorf("FILES_BUCKET is required")
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OTel endpoint is required when OTel is enabled")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
