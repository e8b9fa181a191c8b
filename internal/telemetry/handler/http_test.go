package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"mqtt-monitor/backend/internal/audit"
	"mqtt-monitor/backend/internal/server/middleware"
	"mqtt-monitor/backend/internal/telemetry/domain"
	"mqtt-monitor/backend/internal/telemetry/export"
	"mqtt-monitor/backend/internal/telemetry/service"
	"mqtt-monitor/backend/internal/telemetry/timerange"
	"mqtt-monitor/backend/internal/web"
)

func ptr(v float64) *float64 { return &v }

type seriesCall struct {
	host, topic, field, rng string
}

type mockService struct {
	hosts     []domain.HostSummary
	groups    []domain.TopicGroup
	fields    []domain.ColumnDescriptor
	points    []domain.Point
	err       error
	seriesErr error

	mu    sync.Mutex
	calls []seriesCall
}

func (m *mockService) Hosts(ctx context.Context) ([]domain.HostSummary, error) {
	return m.hosts, m.err
}

func (m *mockService) TopicGroups(ctx context.Context, host string) ([]domain.TopicGroup, error) {
	return m.groups, m.err
}

func (m *mockService) Fields(ctx context.Context, host, topic string) ([]domain.ColumnDescriptor, error) {
	return m.fields, m.err
}

func (m *mockService) Series(ctx context.Context, host, topic, field, rangeToken string) (*domain.Series, error) {
	m.mu.Lock()
	m.calls = append(m.calls, seriesCall{host, topic, field, rangeToken})
	m.mu.Unlock()
	if m.seriesErr != nil {
		return nil, m.seriesErr
	}
	rng := timerange.Normalize(rangeToken)
	return &domain.Series{Host: host, Topic: topic, Field: field, Range: rng, Points: m.points}, nil
}

type mockAudit struct {
	mu     sync.Mutex
	events []string
	meta   []string
}

func (m *mockAudit) LogEvent(ctx context.Context, userID, username, action, resource, metadata string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, action+" "+resource)
	m.meta = append(m.meta, metadata)
}

func newRouter(t *testing.T, svc Service, al audit.AuditLogger) http.Handler {
	t.Helper()
	views, err := web.NewRenderer(nil)
	require.NoError(t, err)
	h := NewHandler(svc, views, al, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithIdentity(req.Context(), middleware.Identity{UserID: "u1", Username: "erin", Role: "editor"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/", h.Dashboard)
	r.Get("/host/{host}/", h.Host)
	r.Get("/host/{host}/topic/*", h.Topic)
	r.Get("/api/host/{host}/topic/*", h.Data)
	r.Get("/export/host/{host}/topic/*", h.Export)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func samplePoints() []domain.Point {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return []domain.Point{
		{Time: base, Value: ptr(21.5)},
		{Time: base.Add(time.Minute), Value: nil},
		{Time: base.Add(2 * time.Minute), Value: ptr(22)},
	}
}

func TestDashboard(t *testing.T) {
	svc := &mockService{hosts: []domain.HostSummary{{Host: "plc-1", LastSeen: time.Now()}}}
	rec := get(t, newRouter(t, svc, nil), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `href="/host/plc-1/"`)
}

func TestDashboard_StorageError(t *testing.T) {
	rec := get(t, newRouter(t, &mockService{err: errors.New("connection reset")}, nil), "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHost(t *testing.T) {
	svc := &mockService{groups: []domain.TopicGroup{{Prefix: "factory", Topics: []string{"factory/line1/temp"}}}}
	rec := get(t, newRouter(t, svc, nil), "/host/plc-1/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `href="/host/plc-1/topic/factory/line1/temp/fields/"`)
}

func TestTopic_Fields(t *testing.T) {
	svc := &mockService{fields: []domain.ColumnDescriptor{{Name: "flow_rate", Type: domain.ColumnTypeDoublePrecision}}}
	rec := get(t, newRouter(t, svc, nil), "/host/plc-1/topic/factory/line1/flow/fields/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Flow_Rate")
	require.Contains(t, body, `href="/host/plc-1/topic/factory/line1/flow/field/flow_rate/"`)
}

func TestTopic_NoFields(t *testing.T) {
	rec := get(t, newRouter(t, &mockService{}, nil), "/host/plc-1/topic/status/fields/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No numeric fields")
}

func TestTopic_Chart(t *testing.T) {
	svc := &mockService{points: samplePoints()}
	rec := get(t, newRouter(t, svc, nil), "/host/plc-1/topic/factory/line1/temp/field/value/?range=24h")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "3 data points")
	require.Equal(t, []seriesCall{{"plc-1", "factory/line1/temp", "value", "24h"}}, svc.calls)
}

func TestTopic_ChartUnknownField(t *testing.T) {
	svc := &mockService{seriesErr: service.ErrUnknownField}
	rec := get(t, newRouter(t, svc, nil), "/host/plc-1/topic/t/field/nope/")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopic_UnmatchedTail(t *testing.T) {
	rec := get(t, newRouter(t, &mockService{}, nil), "/host/plc-1/topic/t/other/")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestData(t *testing.T) {
	svc := &mockService{points: samplePoints()}
	rec := get(t, newRouter(t, svc, nil), "/api/host/plc-1/topic/factory/line1/temp/field/value/data/?range=bogus")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload export.ChartPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, []string{"2024-01-15 10:00:00", "2024-01-15 10:01:00", "2024-01-15 10:02:00"}, payload.Labels)
	require.Len(t, payload.Datasets, 1)
	require.Equal(t, "factory/line1/temp (value)", payload.Datasets[0].Label)
	require.Nil(t, payload.Datasets[0].Data[1])
	require.Equal(t, 21.5, *payload.Datasets[0].Data[0])
	require.Equal(t, "bogus", svc.calls[0].rng)
}

func TestData_StorageError(t *testing.T) {
	svc := &mockService{seriesErr: errors.New("timeout")}
	rec := get(t, newRouter(t, svc, nil), "/api/host/h/topic/t/field/f/data/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestData_MissingTrailer(t *testing.T) {
	rec := get(t, newRouter(t, &mockService{}, nil), "/api/host/h/topic/t/field/f/")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	svc := &mockService{points: samplePoints()}
	al := &mockAudit{}
	rec := get(t, newRouter(t, svc, al), "/export/host/plc-1/topic/factory/line1/temp/field/flow_rate/?range=1h")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="plc-1_factory_line1_temp_flow_rate.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\r\n"), "\r\n")
	require.Equal(t, "Time,Host,Topic,Flow_Rate", lines[0])
	require.Len(t, lines, 4)
	require.Equal(t, "2024-01-15T10:00:00+00:00,plc-1,factory/line1/temp,21.5", lines[1])
	require.Equal(t, "2024-01-15T10:01:00+00:00,plc-1,factory/line1/temp,", lines[2])

	require.Equal(t, []string{"export_csv plc-1/factory/line1/temp/flow_rate"}, al.events)
	require.Equal(t, `{"range":"1h","rows":3}`, al.meta[0])
}

func TestExport_UnknownField(t *testing.T) {
	al := &mockAudit{}
	rec := get(t, newRouter(t, &mockService{seriesErr: service.ErrUnknownField}, al), "/export/host/h/topic/t/field/f/")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, al.events)
}
