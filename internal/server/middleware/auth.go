package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mqtt-monitor/backend/internal/security"
	userdomain "mqtt-monitor/backend/internal/user/domain"
)

// SessionCookieName is the HTTP-only cookie holding the signed session token.
const SessionCookieName = "mqtt_monitor_session"

// TokenValidator validates session tokens. Implemented by *security.TokenProvider.
type TokenValidator interface {
	Validate(token string) (*security.SessionClaims, error)
}

// UserLookup loads the account behind a session. Implemented by the identity AuthService.
// It returns nil, nil when the user does not exist.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*userdomain.User, error)
}

// Session returns middleware that validates the session cookie and sets the caller identity in the
// request context. Requests without a cookie, or with an invalid or expired one, continue anonymously;
// an invalid cookie is cleared. Route guards decide what anonymous callers may see.
//
// When users is non-nil the account is re-read on every request: username and role come from the
// stored user, and a missing or inactive user is treated as anonymous with the cookie cleared.
// A lookup failure is answered with 500.
func Session(tokens TokenValidator, users UserLookup, secure bool, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.Validate(c.Value)
			if err != nil {
				log.Debug("session: rejected cookie", "error", err, "path", r.URL.Path)
				ClearSessionCookie(w, secure)
				next.ServeHTTP(w, r)
				return
			}
			id := Identity{
				UserID:   claims.UserID(),
				Username: claims.Username,
				Role:     claims.Role,
			}
			if users != nil {
				u, err := users.GetUser(r.Context(), id.UserID)
				if err != nil {
					log.Error("session: load user", "user_id", id.UserID, "error", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if u == nil || !u.Active {
					log.Info("session: account missing or inactive", "user_id", id.UserID)
					ClearSessionCookie(w, secure)
					next.ServeHTTP(w, r)
					return
				}
				id.Username = u.Username
				id.Role = string(u.Role)
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// SetSessionCookie writes the session token cookie expiring at expiresAt.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
