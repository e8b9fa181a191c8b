package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.TelemetryTable != "mqtt_consumer" {
		t.Errorf("TelemetryTable = %q, want %q", cfg.TelemetryTable, "mqtt_consumer")
	}
	if cfg.TelemetryProbeConcurrency != 4 {
		t.Errorf("TelemetryProbeConcurrency = %d, want 4", cfg.TelemetryProbeConcurrency)
	}
	if cfg.TelemetryMaxConns != 10 {
		t.Errorf("TelemetryMaxConns = %d, want 10", cfg.TelemetryMaxConns)
	}
	if cfg.SessionIssuer != "mqtt-monitor" {
		t.Errorf("SessionIssuer = %q, want %q", cfg.SessionIssuer, "mqtt-monitor")
	}
	if cfg.SessionAudience != "mqtt-monitor-web" {
		t.Errorf("SessionAudience = %q, want %q", cfg.SessionAudience, "mqtt-monitor-web")
	}
	if cfg.SessionTTL != "12h" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "12h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.ServiceName != "mqtt-monitor" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "mqtt-monitor")
	}
	if cfg.IsProduction() {
		t.Error("IsProduction should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("TELEMETRY_TABLE", "sensor_rows")
	os.Setenv("BCRYPT_COST", "10")
	os.Setenv("TELEMETRY_PROBE_CONCURRENCY", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.TelemetryTable != "sensor_rows" {
		t.Errorf("TelemetryTable = %q, want %q", cfg.TelemetryTable, "sensor_rows")
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.TelemetryProbeConcurrency != 1 {
		t.Errorf("TelemetryProbeConcurrency = %d, want 1", cfg.TelemetryProbeConcurrency)
	}
}

func TestLoad_ProbeConcurrencyClamped(t *testing.T) {
	os.Clearenv()
	os.Setenv("TELEMETRY_PROBE_CONCURRENCY", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelemetryProbeConcurrency != 1 {
		t.Errorf("TelemetryProbeConcurrency = %d, want 1", cfg.TelemetryProbeConcurrency)
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_ProductionRequiresSessionSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("SESSION_SECRET", "short")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error for a short SESSION_SECRET in production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Errorf("error = %q, want mention of SESSION_SECRET", err.Error())
	}
}

func TestLoad_ProductionWithSessionSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "Production")
	os.Setenv("SESSION_SECRET", strings.Repeat("k", 32))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true")
	}
}

func TestTelemetryDSN_FallsBackToDatabaseURL(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://app@db/app"}
	if got := cfg.TelemetryDSN(); got != "postgres://app@db/app" {
		t.Errorf("TelemetryDSN = %q, want DatabaseURL", got)
	}
	cfg.TelemetryDatabaseURL = "postgres://ts@tsdb/metrics"
	if got := cfg.TelemetryDSN(); got != "postgres://ts@tsdb/metrics" {
		t.Errorf("TelemetryDSN = %q, want TelemetryDatabaseURL", got)
	}
}

func TestSessionDuration(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"invalid", 12 * time.Hour},
		{"0", 12 * time.Hour},
		{"-5m", 12 * time.Hour},
		{"", 12 * time.Hour},
	}
	for _, tc := range testCases {
		cfg := &Config{SessionTTL: tc.value}
		if got := cfg.SessionDuration(); got != tc.want {
			t.Errorf("SessionDuration(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	testCases := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range testCases {
		cfg := &Config{LogLevel: tc.value}
		if got := cfg.SlogLevel(); got != tc.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
