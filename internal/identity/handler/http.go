// Package handler serves the login, logout and profile pages.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mqtt-monitor/backend/internal/audit"
	"mqtt-monitor/backend/internal/identity/service"
	"mqtt-monitor/backend/internal/metrics"
	"mqtt-monitor/backend/internal/platform/rbac"
	"mqtt-monitor/backend/internal/server/middleware"
	userdomain "mqtt-monitor/backend/internal/user/domain"
	"mqtt-monitor/backend/internal/web"
)

// InvalidLoginMessage is shown on the login form after a failed attempt.
const InvalidLoginMessage = "Invalid username or password."

// Authenticator is the subset of *service.AuthService used by the handler.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	GetUser(ctx context.Context, id string) (*userdomain.User, error)
}

// Handler serves the identity pages.
type Handler struct {
	auth          Authenticator
	views         *web.Renderer
	audit         audit.AuditLogger
	secureCookies bool
	log           *slog.Logger
}

// NewHandler returns an identity handler. auditLogger may be nil.
func NewHandler(auth Authenticator, views *web.Renderer, auditLogger audit.AuditLogger, secureCookies bool, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{auth: auth, views: views, audit: auditLogger, secureCookies: secureCookies, log: log}
}

type loginView struct {
	Username string
	Error    string
}

type profileView struct {
	User *userdomain.User
}

// LoginForm renders the login page. Logged-in callers go to the dashboard.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetIdentity(r.Context()); ok {
		http.Redirect(w, r, rbac.DeniedRedirectPath, http.StatusFound)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageLogin, "Sign in", loginView{})
}

// Login checks the submitted credentials, sets the session cookie and redirects to the dashboard.
// Bad credentials re-render the form with InvalidLoginMessage.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetIdentity(r.Context()); ok {
		http.Redirect(w, r, rbac.DeniedRedirectPath, http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	res, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			h.logEvent(r.Context(), "", username, audit.ActionLoginFailure)
			h.views.Render(w, r, http.StatusOK, web.PageLogin, "Sign in", loginView{Username: username, Error: InvalidLoginMessage})
			return
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		h.log.Error("login failed", "username", username, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	middleware.SetSessionCookie(w, res.Token, res.ExpiresAt, h.secureCookies)
	h.logEvent(r.Context(), res.User.ID, res.User.Username, audit.ActionLoginSuccess)
	h.log.Info("user logged in", "user", res.User.Username, "role", res.User.Role)
	http.Redirect(w, r, rbac.DeniedRedirectPath, http.StatusFound)
}

// Logout clears the session cookie and returns to the login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.GetIdentity(r.Context()); ok {
		h.logEvent(r.Context(), id.UserID, id.Username, audit.ActionLogout)
	}
	middleware.ClearSessionCookie(w, h.secureCookies)
	http.Redirect(w, r, rbac.LoginPath, http.StatusFound)
}

// Profile shows the caller's account. A session for a user that no longer exists is ended.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Redirect(w, r, rbac.LoginPath, http.StatusFound)
		return
	}
	u, err := h.auth.GetUser(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("profile: load user", "user_id", id.UserID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if u == nil || !u.Active {
		middleware.ClearSessionCookie(w, h.secureCookies)
		http.Redirect(w, r, rbac.LoginPath, http.StatusFound)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageProfile, "Profile", profileView{User: u})
}

func (h *Handler) logEvent(ctx context.Context, userID, username, action string) {
	if h.audit == nil {
		return
	}
	h.audit.LogEvent(ctx, userID, username, action, audit.ResourceSession, "")
}
