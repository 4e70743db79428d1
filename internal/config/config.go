// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/notifier and cmd/notifyctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is populated from environment variables with sensible defaults.
type Config struct {
	// Record store
	MongoURI string
	MongoDB  string

	// Admin API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Delivery channels
	FCMCredentialsFile string
	RealtimeGatewayURL string
	DeepLinkBaseURL    string

	// Scheduler / pipeline
	SchedulerEnabled bool
	SchedulerCadence string
	Lookback         time.Duration
	PipelineWorkers  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	mongoURI := envOr("MONGODB_URI", envOr("MONGO_URL", ""))
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI or MONGO_URL must be set")
	}

	return &Config{
		MongoURI: mongoURI,
		MongoDB:  envOr("MONGODB_DATABASE", "tabletalk"),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8080)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:19006",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		FCMCredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", ""),
		RealtimeGatewayURL: envOr("REALTIME_GATEWAY_URL", ""),
		DeepLinkBaseURL:    envOr("DEEP_LINK_BASE_URL", "https://app.tabletalk.it"),

		SchedulerEnabled: envBool("SCHEDULER_ENABLED", true),
		SchedulerCadence: envOr("SCHEDULER_CADENCE", "@every 30m"),
		Lookback:         time.Duration(envInt("SCAN_LOOKBACK_HOURS", 2)) * time.Hour,
		PipelineWorkers:  envInt("PIPELINE_WORKERS", 4),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
