package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"mqtt-monitor/backend/internal/audit/domain"
	auditrepo "mqtt-monitor/backend/internal/audit/repository"
	"mqtt-monitor/backend/internal/server/middleware"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by login and export code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, username, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository, an optional emitter and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	emitter     Emitter
	ipExtractor IPExtractor
	clock       clockwork.Clock
	log         *slog.Logger
}

// Option configures a Logger.
type Option func(*Logger)

// WithEmitter forwards every entry to e asynchronously after it is persisted.
func WithEmitter(e Emitter) Option { return func(l *Logger) { l.emitter = e } }

// WithClock sets the clock used for CreatedAt.
func WithClock(c clockwork.Clock) Option { return func(l *Logger) { l.clock = c } }

// WithLogger sets the logger used to report failures.
func WithLogger(log *slog.Logger) Option { return func(l *Logger) { l.log = log } }

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// repo and ipExtractor may be nil; with a nil ipExtractor IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, opts ...Option) *Logger {
	l := &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		clock:       clockwork.NewRealClock(),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, username, action, resource, metadata string) {
	if l.repo == nil && l.emitter == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Username:  username,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.clock.Now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.Error("audit: failed to log event", "action", action, "resource", resource, "error", err)
		}
	}
	EmitAsync(l.emitter, entry, l.log)
}

// RecordDenied logs a refused access attempt for the caller identity.
func (l *Logger) RecordDenied(ctx context.Context, id middleware.Identity, action, resource string) {
	l.LogEvent(ctx, id.UserID, id.Username, DeniedAction(action), resource, Metadata(map[string]any{"role": id.Role}))
}
