// Package handler serves the telemetry pages, the chart data endpoint and CSV export.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"mqtt-monitor/backend/internal/audit"
	"mqtt-monitor/backend/internal/metrics"
	"mqtt-monitor/backend/internal/server/middleware"
	"mqtt-monitor/backend/internal/telemetry/domain"
	"mqtt-monitor/backend/internal/telemetry/export"
	"mqtt-monitor/backend/internal/telemetry/service"
	"mqtt-monitor/backend/internal/web"
)

// Service is the subset of *service.Service used by the handler.
type Service interface {
	Hosts(ctx context.Context) ([]domain.HostSummary, error)
	TopicGroups(ctx context.Context, host string) ([]domain.TopicGroup, error)
	Fields(ctx context.Context, host, topic string) ([]domain.ColumnDescriptor, error)
	Series(ctx context.Context, host, topic, field, rangeToken string) (*domain.Series, error)
}

// Handler serves telemetry routes. Hosts come from the {host} URL parameter and topics from the wildcard tail.
type Handler struct {
	svc   Service
	views *web.Renderer
	audit audit.AuditLogger
	log   *slog.Logger
}

// NewHandler returns a telemetry handler. auditLogger may be nil.
func NewHandler(svc Service, views *web.Renderer, auditLogger audit.AuditLogger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, views: views, audit: auditLogger, log: log}
}

type dashboardView struct {
	Hosts []domain.HostSummary
}

type hostView struct {
	Host   string
	Groups []domain.TopicGroup
}

type fieldsView struct {
	Host   string
	Topic  string
	Fields []domain.ColumnDescriptor
}

type chartView struct {
	Host  string
	Topic string
	Field string
	Range string
	Count int
}

// Dashboard lists every host with its last report time.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.svc.Hosts(r.Context())
	if err != nil {
		h.fail(w, r, "list hosts", err)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageDashboard, "Dashboard", dashboardView{Hosts: hosts})
}

// Host lists the topics of one host grouped by prefix.
func (h *Handler) Host(w http.ResponseWriter, r *http.Request) {
	host, ok := hostParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	groups, err := h.svc.TopicGroups(r.Context(), host)
	if err != nil {
		h.fail(w, r, "list topics", err)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageHost, host, hostView{Host: host, Groups: groups})
}

// Topic dispatches "/host/{host}/topic/*" to the field picker or the chart page.
func (h *Handler) Topic(w http.ResponseWriter, r *http.Request) {
	host, ok := hostParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	tail := chi.URLParam(r, "*")
	if topic, ok := parseFieldsTail(tail); ok {
		h.fields(w, r, host, topic)
		return
	}
	if topic, field, ok := parseFieldTail(tail, ""); ok {
		h.chart(w, r, host, topic, field)
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) fields(w http.ResponseWriter, r *http.Request, host, topic string) {
	cols, err := h.svc.Fields(r.Context(), host, topic)
	if err != nil {
		h.fail(w, r, "list fields", err)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageFields, topic, fieldsView{Host: host, Topic: topic, Fields: cols})
}

func (h *Handler) chart(w http.ResponseWriter, r *http.Request, host, topic, field string) {
	series, err := h.svc.Series(r.Context(), host, topic, field, r.URL.Query().Get("range"))
	if err != nil {
		h.fail(w, r, "chart", err)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageChart, topic, chartView{
		Host:  host,
		Topic: topic,
		Field: field,
		Range: series.Range,
		Count: len(series.Points),
	})
}

// Data serves the Chart.js payload for one field.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	series, ok := h.series(w, r, dataTrailer)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(export.NewChartPayload(series)); err != nil {
		h.log.Warn("chart data: write response", "error", err)
	}
}

// Export serves one field as a CSV attachment. Role gating happens in the router.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	series, ok := h.series(w, r, "")
	if !ok {
		metrics.ExportsTotal.WithLabelValues("failed").Inc()
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, series); err != nil {
		metrics.ExportsTotal.WithLabelValues("error").Inc()
		h.fail(w, r, "export csv", err)
		return
	}
	metrics.ExportsTotal.WithLabelValues("success").Inc()
	if h.audit != nil {
		id, _ := middleware.GetIdentity(r.Context())
		h.audit.LogEvent(r.Context(), id.UserID, id.Username, audit.ActionExportCSV,
			audit.SeriesResource(series.Host, series.Topic, series.Field),
			audit.Metadata(map[string]any{"range": series.Range, "rows": len(series.Points)}))
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", export.ContentDisposition(export.Filename(series.Host, series.Topic, series.Field)))
	_, _ = buf.WriteTo(w)
}

// series resolves host, topic and field from the request and loads the series; on failure the response
// is already written.
func (h *Handler) series(w http.ResponseWriter, r *http.Request, trailer string) (*domain.Series, bool) {
	host, ok := hostParam(r)
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	topic, field, ok := parseFieldTail(chi.URLParam(r, "*"), trailer)
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	series, err := h.svc.Series(r.Context(), host, topic, field, r.URL.Query().Get("range"))
	if err != nil {
		h.fail(w, r, "series", err)
		return nil, false
	}
	return series, true
}

// fail maps service errors to responses: unknown fields are 404, anything else is logged and 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, service.ErrUnknownField) {
		http.NotFound(w, r)
		return
	}
	if errors.Is(err, context.Canceled) {
		h.log.Debug("telemetry: request cancelled", "op", op, "path", r.URL.Path)
		return
	}
	h.log.Error("telemetry: "+op, "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func hostParam(r *http.Request) (string, bool) {
	host, err := url.PathUnescape(chi.URLParam(r, "host"))
	if err != nil || host == "" {
		return "", false
	}
	return host, true
}
