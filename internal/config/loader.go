package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with priority order:
// 1. Environment variables (MIRADOR_SLA_*)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mirador-sla/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MIRADOR_SLA")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Monitor defaults
	v.SetDefault("monitor.measurement_window", 100)

	// Escalation defaults
	v.SetDefault("escalation.enabled", true)
	v.SetDefault("escalation.scan_interval", "1m")
	v.SetDefault("escalation.timeouts.critical", "15m")
	v.SetDefault("escalation.timeouts.high", "30m")
	v.SetDefault("escalation.timeouts.medium", "1h")
	v.SetDefault("escalation.timeouts.low", "4h")

	// Notification defaults
	v.SetDefault("notifications.drain_interval", "1s")
	v.SetDefault("notifications.max_attempts", 3)
	v.SetDefault("notifications.retry_delay", "30s")
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.smtp_port", 587)
	v.SetDefault("notifications.slack.enabled", false)
	v.SetDefault("notifications.webhook.enabled", false)

	// Pattern analysis defaults
	v.SetDefault("patterns.window", "168h") // 7 days

	// Compliance defaults
	v.SetDefault("compliance.window", "720h") // 30 days
	v.SetDefault("compliance.cache_ttl", "5m")
	v.SetDefault("compliance.refresh_interval", "10m")

	// Storage defaults
	v.SetDefault("storage.backend", "memory")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 300)
	v.SetDefault("cache.db", 0)

	// NATS defaults (external event sink, off unless configured)
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "mirador.sla.events")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Tenant-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Cache"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", 30)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

func validateConfig(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	switch cfg.Storage.Backend {
	case "memory":
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}

	if cfg.Notifications.MaxAttempts < 1 {
		return fmt.Errorf("notifications.max_attempts must be at least 1")
	}
	if cfg.Notifications.DrainInterval <= 0 {
		return fmt.Errorf("notifications.drain_interval must be positive")
	}
	if cfg.Escalation.Enabled && cfg.Escalation.ScanInterval <= 0 {
		return fmt.Errorf("escalation.scan_interval must be positive")
	}
	if cfg.Patterns.Window <= 0 {
		return fmt.Errorf("patterns.window must be positive")
	}
	if cfg.Monitor.MeasurementWindow < 1 {
		return fmt.Errorf("monitor.measurement_window must be at least 1")
	}

	return nil
}
