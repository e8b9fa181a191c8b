// server runs the MQTT monitoring dashboard over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqtt-monitor/backend/internal/audit"
	auditrepo "mqtt-monitor/backend/internal/audit/repository"
	"mqtt-monitor/backend/internal/config"
	"mqtt-monitor/backend/internal/db"
	healthhandler "mqtt-monitor/backend/internal/health/handler"
	identityhandler "mqtt-monitor/backend/internal/identity/handler"
	identityservice "mqtt-monitor/backend/internal/identity/service"
	"mqtt-monitor/backend/internal/metrics"
	"mqtt-monitor/backend/internal/platform/otel"
	"mqtt-monitor/backend/internal/platform/rbac"
	"mqtt-monitor/backend/internal/policy/engine"
	"mqtt-monitor/backend/internal/security"
	"mqtt-monitor/backend/internal/server"
	"mqtt-monitor/backend/internal/server/middleware"
	telemetryhandler "mqtt-monitor/backend/internal/telemetry/handler"
	telemetryrepo "mqtt-monitor/backend/internal/telemetry/repository"
	telemetryservice "mqtt-monitor/backend/internal/telemetry/service"
	userrepo "mqtt-monitor/backend/internal/user/repository"
	"mqtt-monitor/backend/internal/web"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	logger := newLogger(cfg.SlogLevel())
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, otel.Options{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Log:            logger,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	pool, err := db.OpenPool(ctx, cfg.TelemetryDSN(), db.PoolOptions{MaxConns: int32(cfg.TelemetryMaxConns)})
	if err != nil {
		return fmt.Errorf("telemetry db: %w", err)
	}
	defer pool.Close()

	var policy *engine.OPAEvaluator
	if cfg.AccessPolicyFile != "" {
		policy, err = engine.NewOPAEvaluatorFromFile(ctx, cfg.AccessPolicyFile)
	} else {
		policy, err = engine.NewOPAEvaluator(ctx)
	}
	if err != nil {
		return fmt.Errorf("access policy: %w", err)
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		if secret, err = security.RandomSecret(32); err != nil {
			return fmt.Errorf("session secret: %w", err)
		}
		logger.Warn("SESSION_SECRET not set; using a random secret, sessions end on restart")
	}
	clock := clockwork.NewRealClock()
	tokens, err := security.NewTokenProvider(secret, cfg.SessionIssuer, cfg.SessionAudience, cfg.SessionDuration(), clock)
	if err != nil {
		return fmt.Errorf("session tokens: %w", err)
	}

	auditLogger := audit.NewLogger(
		auditrepo.NewPostgresRepository(conn),
		middleware.ClientIPFromContext,
		audit.WithEmitter(otel.NewAuditEmitter(providers.LoggerProvider)),
		audit.WithLogger(logger),
	)

	repo, err := telemetryrepo.NewPostgresRepository(pool, telemetryrepo.Options{
		Table:            cfg.TelemetryTable,
		ProbeConcurrency: cfg.TelemetryProbeConcurrency,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry repository: %w", err)
	}

	views, err := web.NewRenderer(logger)
	if err != nil {
		return err
	}

	authSvc := identityservice.NewAuthService(userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), tokens, clock)
	handler := server.NewRouter(server.Deps{
		Log:           logger,
		Tokens:        tokens,
		Users:         authSvc,
		SecureCookies: cfg.IsProduction(),
		Guard:         rbac.NewGuard(policy, auditLogger, logger),
		Identity:      identityhandler.NewHandler(authSvc, views, auditLogger, cfg.IsProduction(), logger),
		Telemetry:     telemetryhandler.NewHandler(telemetryservice.New(repo, clock, logger), views, auditLogger, logger),
		Health:        healthhandler.NewHandler(conn, pool, policy),
		Metrics:       promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", cfg.HTTPAddr, "env", cfg.Env, "table", cfg.TelemetryTable)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "error", err)
	}

	// Let in-flight audit emits finish before the log exporter shuts down.
	if providers.Exporting {
		time.Sleep(audit.ShutdownDrainDuration)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s.%03dZ", t.Format("2006-01-02T15:04:05"), t.Nanosecond()/1_000_000)
}
