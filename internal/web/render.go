// Package web renders the dashboard's HTML pages from embedded templates.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"mqtt-monitor/backend/internal/platform/rbac"
	"mqtt-monitor/backend/internal/server/middleware"
	"mqtt-monitor/backend/internal/telemetry/export"
	"mqtt-monitor/backend/internal/telemetry/timerange"
	userdomain "mqtt-monitor/backend/internal/user/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageLogin     = "login.html"
	PageDashboard = "dashboard.html"
	PageHost      = "host.html"
	PageFields    = "fields.html"
	PageChart     = "chart.html"
	PageProfile   = "profile.html"
)

var pageNames = []string{PageLogin, PageDashboard, PageHost, PageFields, PageChart, PageProfile}

// Page is the data passed to every template. Data holds the page-specific view model.
type Page struct {
	Title    string
	Identity middleware.Identity
	LoggedIn bool
	Flash    string
	Data     any
}

// Renderer executes the page templates. Safe for concurrent use.
type Renderer struct {
	pages map[string]*template.Template
	log   *slog.Logger
}

var funcs = template.FuncMap{
	"hostURL":    HostURL,
	"fieldsURL":  FieldsURL,
	"chartURL":   ChartURL,
	"dataURL":    DataURL,
	"exportURL":  ExportURL,
	"titleField": export.TitleField,
	"ranges":     func() []string { return timerange.Tokens },
	"canExport": func(role string) bool {
		return rbac.IsAuthorized(userdomain.Role(role), rbac.ExportRoles...)
	},
	"lastSeen": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return export.FormatLabel(t)
	},
}

// NewRenderer parses every page together with the base layout.
func NewRenderer(log *slog.Logger) (*Renderer, error) {
	if log == nil {
		log = slog.Default()
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, log: log}, nil
}

// Render writes page name with status. The pending flash message is consumed and the caller identity
// is taken from the request context. Execution happens into a buffer so a template error yields a 500.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, ok := rd.pages[name]
	if !ok {
		rd.log.Error("web: unknown template", "name", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id, loggedIn := middleware.GetIdentity(r.Context())
	page := Page{
		Title:    title,
		Identity: id,
		LoggedIn: loggedIn,
		Flash:    middleware.PopFlash(w, r),
		Data:     data,
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", page); err != nil {
		rd.log.Error("web: render failed", "name", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
