package audit

import (
	"context"
	"log/slog"
	"time"

	"mqtt-monitor/backend/internal/audit/domain"
)

// Emitter forwards audit entries to an external sink (e.g. OTel Logs). Best-effort; callers log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, entry *domain.AuditLog) error
}

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
//
// emitter and entry may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() with emitTimeout so request cancellation does not abort in-flight emit.
func EmitAsync(emitter Emitter, entry *domain.AuditLog, log *slog.Logger) {
	if emitter == nil || entry == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, entry); err != nil {
			log.Warn("audit: async emit failed", "action", entry.Action, "error", err)
		}
	}()
}
