package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"mqtt-monitor/backend/internal/policy/engine"
	"mqtt-monitor/backend/internal/server/middleware"
	userdomain "mqtt-monitor/backend/internal/user/domain"
)

const (
	// PermissionDeniedMessage is flashed when a logged-in user is refused a page.
	PermissionDeniedMessage = "You do not have permission to access this page."
	// LoginPath is where unauthenticated callers are sent.
	LoginPath = "/login/"
	// DeniedRedirectPath is where refused callers are sent.
	DeniedRedirectPath = "/"
)

// DenialRecorder is notified when a guard refuses an authenticated caller (e.g. the audit logger).
type DenialRecorder interface {
	RecordDenied(ctx context.Context, id middleware.Identity, action, resource string)
}

// Guard builds route guards. Policy and Denials are optional.
type Guard struct {
	Policy  engine.Evaluator
	Denials DenialRecorder
	Log     *slog.Logger
}

// NewGuard returns a Guard. policy and denials may be nil.
func NewGuard(policy engine.Evaluator, denials DenialRecorder, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{Policy: policy, Denials: denials, Log: log}
}

// RequireLogin redirects anonymous callers to the login page.
func (g *Guard) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetIdentity(r.Context()); !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows the request only when the caller's role is in allowed and, when a policy is configured,
// the policy agrees. Refused callers get a flash message and a redirect to the dashboard, never an error page.
// Anonymous callers are sent to the login page.
func (g *Guard) RequireRole(action string, allowed ...userdomain.Role) func(http.Handler) http.Handler {
	allowedNames := make([]string, len(allowed))
	for i, r := range allowed {
		allowedNames[i] = string(r)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := middleware.GetIdentity(r.Context())
			if !ok {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			if !g.permits(r.Context(), id, action, allowed, allowedNames) {
				g.Log.Info("access denied", "user", id.Username, "role", id.Role, "action", action, "path", r.URL.Path)
				if g.Denials != nil {
					g.Denials.RecordDenied(r.Context(), id, action, r.URL.Path)
				}
				middleware.SetFlash(w, PermissionDeniedMessage)
				http.Redirect(w, r, DeniedRedirectPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) permits(ctx context.Context, id middleware.Identity, action string, allowed []userdomain.Role, allowedNames []string) bool {
	if !IsAuthorized(userdomain.Role(id.Role), allowed...) {
		return false
	}
	if g.Policy == nil {
		return true
	}
	ok, err := g.Policy.Allow(ctx, engine.AccessInput{Role: id.Role, Action: action, AllowedRoles: allowedNames})
	if err != nil {
		g.Log.Warn("access policy evaluation failed; denying", "action", action, "error", err)
		return false
	}
	return ok
}
