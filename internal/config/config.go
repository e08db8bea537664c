package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Monitor       MonitorConfig       `mapstructure:"monitor" yaml:"monitor"`
	Escalation    EscalationConfig    `mapstructure:"escalation" yaml:"escalation"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Patterns      PatternsConfig      `mapstructure:"patterns" yaml:"patterns"`
	Compliance    ComplianceConfig    `mapstructure:"compliance" yaml:"compliance"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	NATS          NATSConfig          `mapstructure:"nats" yaml:"nats"`
	CORS          CORSConfig          `mapstructure:"cors" yaml:"cors"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket" yaml:"websocket"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring" yaml:"monitoring"`
}

// MonitorConfig tunes metric intake and evaluation.
type MonitorConfig struct {
	// MeasurementWindow bounds the per-SLA rolling window kept for
	// consecutive-failure rules.
	MeasurementWindow int `mapstructure:"measurement_window" yaml:"measurement_window"`
}

// EscalationConfig tunes the periodic auto-escalation scan. When Enabled is
// false the scanner is inert.
type EscalationConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	ScanInterval time.Duration `mapstructure:"scan_interval" yaml:"scan_interval"`

	// Per-severity timeouts before an open breach is escalated one level.
	Timeouts EscalationTimeouts `mapstructure:"timeouts" yaml:"timeouts"`

	// Contacts maps escalation levels to recipient lists. Levels beyond the
	// highest configured entry reuse that entry.
	Contacts map[int][]string `mapstructure:"contacts" yaml:"contacts"`
}

type EscalationTimeouts struct {
	Critical time.Duration `mapstructure:"critical" yaml:"critical"`
	High     time.Duration `mapstructure:"high" yaml:"high"`
	Medium   time.Duration `mapstructure:"medium" yaml:"medium"`
	Low      time.Duration `mapstructure:"low" yaml:"low"`
}

// NotificationsConfig tunes the dispatcher queues and providers.
type NotificationsConfig struct {
	DrainInterval time.Duration `mapstructure:"drain_interval" yaml:"drain_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	Email   EmailProviderConfig   `mapstructure:"email" yaml:"email"`
	Slack   SlackProviderConfig   `mapstructure:"slack" yaml:"slack"`
	Webhook WebhookProviderConfig `mapstructure:"webhook" yaml:"webhook"`
}

type EmailProviderConfig struct {
	SMTPHost    string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	FromAddress string `mapstructure:"from_address" yaml:"from_address"`
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
}

type SlackProviderConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type WebhookProviderConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PatternsConfig tunes breach pattern analysis.
type PatternsConfig struct {
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// ComplianceConfig tunes compliance scoring.
type ComplianceConfig struct {
	Window          time.Duration `mapstructure:"window" yaml:"window"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// StorageConfig selects the breach store backend. "memory" keeps everything
// in-process; "postgres" substitutes the durable backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"` // memory | postgres
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// CacheConfig handles Valkey caching configuration.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// NATSConfig configures the optional external event sink.
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// CORSConfig handles Cross-Origin Resource Sharing.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// WebSocketConfig handles the live event stream endpoint.
type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
}

// MonitoringConfig handles self-monitoring.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// Timeout returns the escalation timeout for a severity string as stored on
// breach records. Unknown severities use the low timeout.
func (t EscalationTimeouts) Timeout(severity string) time.Duration {
	switch severity {
	case "critical":
		return t.Critical
	case "high":
		return t.High
	case "medium":
		return t.Medium
	}
	return t.Low
}
