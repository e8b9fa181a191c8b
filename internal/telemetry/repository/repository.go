package repository

import (
	"context"
	"time"

	"mqtt-monitor/backend/internal/telemetry/domain"
)

// Repository reads the telemetry table. It never writes.
type Repository interface {
	// ListNumericColumns returns the numeric, non-key columns of the table ordered by name.
	ListNumericColumns(ctx context.Context) ([]domain.ColumnDescriptor, error)
	// ListPopulatedColumns returns the subset of ListNumericColumns with at least one non-null value for (host, topic).
	ListPopulatedColumns(ctx context.Context, host, topic string) ([]domain.ColumnDescriptor, error)
	// QueryField returns (time, value) pairs for field ordered by time ascending. start and end are optional bounds.
	QueryField(ctx context.Context, host, topic, field string, start, end *time.Time) ([]domain.Point, error)
	// ListHosts returns each distinct host with its latest row time, most recent first.
	ListHosts(ctx context.Context) ([]domain.HostSummary, error)
	// ListTopics returns the distinct topics for host in ascending order.
	ListTopics(ctx context.Context, host string) ([]string, error)
}
