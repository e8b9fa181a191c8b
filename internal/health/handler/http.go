// Package handler serves the readiness endpoint.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 2 * time.Second

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PoolPinger checks a pgx pool (e.g. *pgxpool.Pool).
type PoolPinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the policy engine (e.g. OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Response is the JSON body of /healthz.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler reports SERVING when every configured dependency responds.
// Nil dependencies are skipped.
type Handler struct {
	db        Pinger
	telemetry PoolPinger
	policy    PolicyChecker
}

// NewHandler returns a health handler.
func NewHandler(db Pinger, telemetry PoolPinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, telemetry: telemetry, policy: policy}
}

// ServeHTTP runs the checks concurrently; any failure yields 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]func(context.Context) error{}
	if h.db != nil {
		checks["database"] = h.db.PingContext
	}
	if h.telemetry != nil {
		checks["telemetry"] = h.telemetry.Ping
	}
	if h.policy != nil {
		checks["policy"] = h.policy.HealthCheck
	}

	var mu sync.Mutex
	results := make(map[string]string, len(checks))
	healthy := true
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[name] = err.Error()
				return nil
			}
			results[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{Status: "SERVING", Checks: results}
	status := http.StatusOK
	if !healthy {
		resp.Status = "NOT_SERVING"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
