package otel

import (
	"context"
	"strings"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"mqtt-monitor/backend/internal/audit"
	"mqtt-monitor/backend/internal/audit/domain"
)

// instrumentationScope names the OTel logger used for audit records.
const instrumentationScope = "mqtt-monitor.audit"

// recordEmitter is the subset of otellog.Logger used by the audit emitter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewAuditEmitter returns an audit.Emitter that sends entries as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &auditEmitter{logger: provider.Logger(instrumentationScope)}
}

// NewAuditEmitterWithLogger returns an audit.Emitter that writes to logger directly.
func NewAuditEmitterWithLogger(logger recordEmitter) audit.Emitter {
	return &auditEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuditLog) error { return nil }

type auditEmitter struct {
	logger recordEmitter
}

// Emit converts the audit entry to an OTel log record. Empty fields are not added as attributes.
func (e *auditEmitter) Emit(ctx context.Context, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := entry.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetEventName("audit." + entry.Action)
	rec.SetSeverity(severityFor(entry.Action))
	if entry.Metadata != "" {
		rec.SetBody(otellog.StringValue(entry.Metadata))
	}
	for _, kv := range []struct{ key, val string }{
		{"audit.id", entry.ID},
		{"user.id", entry.UserID},
		{"user.name", entry.Username},
		{"audit.action", entry.Action},
		{"audit.resource", entry.Resource},
		{"client.address", entry.IP},
	} {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityFor(action string) otellog.Severity {
	switch action {
	case audit.ActionLoginFailure, audit.ActionExportDenied:
		return otellog.SeverityWarn
	}
	if strings.HasSuffix(action, "_denied") {
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}
