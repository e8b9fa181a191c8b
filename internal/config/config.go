// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the web server listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for users and audit logs.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// TelemetryDatabaseURL is the DSN of the time-series store. Falls back to DatabaseURL when empty.
	TelemetryDatabaseURL string `mapstructure:"TELEMETRY_DATABASE_URL"`
	// TelemetryTable is the table Telegraf writes MQTT rows into.
	TelemetryTable string `mapstructure:"TELEMETRY_TABLE"`
	// TelemetryProbeConcurrency bounds the per-column existence probes run for one request; 1 runs them sequentially.
	TelemetryProbeConcurrency int `mapstructure:"TELEMETRY_PROBE_CONCURRENCY"`
	// TelemetryMaxConns is the size of the telemetry read pool.
	TelemetryMaxConns int `mapstructure:"TELEMETRY_MAX_CONNS"`

	// SessionSecret is the HMAC key for session tokens. Required (>= 32 bytes) when APP_ENV=production.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionTTL is the session token lifetime (e.g. "12h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionIssuer is the iss claim of session tokens.
	SessionIssuer string `mapstructure:"SESSION_ISSUER"`
	// SessionAudience is the aud claim of session tokens.
	SessionAudience string `mapstructure:"SESSION_AUDIENCE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// AccessPolicyFile is an optional Rego file evaluated on top of the built-in role checks.
	AccessPolicyFile string `mapstructure:"ACCESS_POLICY_FILE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// minProductionSecretLen is the shortest SESSION_SECRET accepted in production.
const minProductionSecretLen = 32

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("TELEMETRY_DATABASE_URL", "")
	v.SetDefault("TELEMETRY_TABLE", "mqtt_consumer")
	v.SetDefault("TELEMETRY_PROBE_CONCURRENCY", 4)
	v.SetDefault("TELEMETRY_MAX_CONNS", 10)
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_ISSUER", "mqtt-monitor")
	v.SetDefault("SESSION_AUDIENCE", "mqtt-monitor-web")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("ACCESS_POLICY_FILE", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "mqtt-monitor")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.TelemetryTable == "" {
		return nil, errors.New("config: TELEMETRY_TABLE must be set")
	}

	if cfg.IsProduction() && len(cfg.SessionSecret) < minProductionSecretLen {
		return nil, errors.New("config: SESSION_SECRET must be at least 32 bytes when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.TelemetryProbeConcurrency <= 0 {
		cfg.TelemetryProbeConcurrency = 1
	}
	if cfg.TelemetryMaxConns <= 0 {
		cfg.TelemetryMaxConns = 10
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// TelemetryDSN returns the DSN of the time-series store, falling back to DatabaseURL.
func (c *Config) TelemetryDSN() string {
	if c.TelemetryDatabaseURL != "" {
		return c.TelemetryDatabaseURL
	}
	return c.DatabaseURL
}

// SessionDuration parses SessionTTL as a time.Duration. Returns 12h if unset or invalid.
func (c *Config) SessionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
