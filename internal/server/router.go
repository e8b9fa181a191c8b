// Package server wires the HTTP route table and middleware chain.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mqtt-monitor/backend/internal/audit"
	identityhandler "mqtt-monitor/backend/internal/identity/handler"
	"mqtt-monitor/backend/internal/metrics"
	"mqtt-monitor/backend/internal/platform/rbac"
	"mqtt-monitor/backend/internal/server/middleware"
	telemetryhandler "mqtt-monitor/backend/internal/telemetry/handler"
)

// Deps holds the handlers and collaborators mounted by NewRouter.
type Deps struct {
	Log *slog.Logger
	// Tokens validates the session cookie.
	Tokens middleware.TokenValidator
	// Users re-reads the session's account on every request so role changes apply immediately.
	Users middleware.UserLookup
	// SecureCookies marks session cookies Secure (production).
	SecureCookies bool
	// Guard enforces login and role checks.
	Guard     *rbac.Guard
	Identity  *identityhandler.Handler
	Telemetry *telemetryhandler.Handler
	// Health serves /healthz. If nil, the route is not mounted.
	Health http.Handler
	// Metrics serves /metrics (e.g. promhttp.Handler()). If nil, the route is not mounted.
	Metrics http.Handler
}

// NewRouter returns the application's HTTP handler.
//
// Route table:
//   - /healthz, /metrics                         no session
//   - /login/, POST /logout/                     session, anonymous allowed
//   - /, /host/..., /api/host/..., /users/profile/  login required
//   - /export/host/...                           login and role admin or editor
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	guard := d.Guard
	if guard == nil {
		guard = rbac.NewGuard(nil, nil, log)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	if d.Health != nil {
		r.Method(http.MethodGet, "/healthz", d.Health)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(d.Tokens, d.Users, d.SecureCookies, log))

		r.Get("/login/", d.Identity.LoginForm)
		r.Post("/login/", d.Identity.Login)
		r.Post("/logout/", d.Identity.Logout)

		r.Group(func(r chi.Router) {
			r.Use(guard.RequireLogin)

			r.Get("/users/profile/", d.Identity.Profile)

			r.Get("/", d.Telemetry.Dashboard)
			r.Get("/host/{host}/", d.Telemetry.Host)
			r.Get("/host/{host}/topic/*", d.Telemetry.Topic)
			r.Get("/api/host/{host}/topic/*", d.Telemetry.Data)
			r.With(guard.RequireRole(audit.ActionExportCSV, rbac.ExportRoles...)).
				Get("/export/host/{host}/topic/*", d.Telemetry.Export)
		})
	})

	return r
}

// requestLogger logs one line per request at debug for probes and info otherwise.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				level := slog.LevelInfo
				if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
					level = slog.LevelDebug
				}
				log.Log(r.Context(), level, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", chimw.GetReqID(r.Context()),
					"ip", middleware.ClientIPFromContext(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
