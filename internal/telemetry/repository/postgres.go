package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mqtt-monitor/backend/internal/telemetry/domain"
)

const tracerName = "mqtt-monitor/telemetry/repository"

const numericColumnsQuery = `SELECT column_name::text, data_type::text
FROM information_schema.columns
WHERE table_schema = current_schema()
  AND table_name::text = $1
  AND column_name::text <> ALL($2::text[])
  AND data_type::text = ANY($3::text[])
ORDER BY column_name`

// Querier is the subset of *pgxpool.Pool used by PostgresRepository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Options configures PostgresRepository.
type Options struct {
	// Table is the telemetry table name; must be a plain identifier.
	Table string
	// ProbeConcurrency bounds concurrent column probes in ListPopulatedColumns; values below 1 mean 1.
	ProbeConcurrency int
}

// PostgresRepository reads telemetry rows through a pgx pool.
type PostgresRepository struct {
	db               Querier
	table            string
	probeConcurrency int
	log              *slog.Logger
	tracer           trace.Tracer
}

// NewPostgresRepository returns a telemetry repository over db. It returns ErrInvalidIdentifier when
// opts.Table is not a plain identifier.
func NewPostgresRepository(db Querier, opts Options, log *slog.Logger) (*PostgresRepository, error) {
	if !ValidIdentifier(opts.Table) {
		return nil, fmt.Errorf("table %q: %w", opts.Table, ErrInvalidIdentifier)
	}
	if opts.ProbeConcurrency < 1 {
		opts.ProbeConcurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRepository{
		db:               db,
		table:            opts.Table,
		probeConcurrency: opts.ProbeConcurrency,
		log:              log,
		tracer:           otel.Tracer(tracerName),
	}, nil
}

// Ping checks the telemetry store is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "SELECT 1")
	return err
}

// ListNumericColumns returns every numeric column of the telemetry table except time, host and topic,
// ordered by name. Columns whose name is not a plain identifier are left out with a warning, so every
// returned name is accepted by QueryField. Storage errors are returned as-is.
func (r *PostgresRepository) ListNumericColumns(ctx context.Context) ([]domain.ColumnDescriptor, error) {
	ctx, span := r.tracer.Start(ctx, "telemetry.ListNumericColumns",
		trace.WithAttributes(attribute.String("db.table", r.table)))
	defer span.End()

	types := make([]string, len(domain.NumericColumnTypes))
	for i, t := range domain.NumericColumnTypes {
		types[i] = string(t)
	}
	rows, err := r.db.Query(ctx, numericColumnsQuery, r.table, domain.ReservedColumns, types)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("list numeric columns: %w", err))
	}
	defer rows.Close()

	var out []domain.ColumnDescriptor
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, spanError(span, fmt.Errorf("scan column: %w", err))
		}
		col := domain.ColumnDescriptor{Name: name, Type: domain.ColumnType(dataType)}
		if !col.Type.IsNumeric() || domain.IsReservedColumn(col.Name) {
			continue
		}
		if !ValidIdentifier(col.Name) {
			r.log.Warn("telemetry: skipping column with non-identifier name", "column", col.Name, "table", r.table)
			continue
		}
		out = append(out, col)
	}
	if err := rows.Err(); err != nil {
		return nil, spanError(span, fmt.Errorf("list numeric columns: %w", err))
	}
	span.SetAttributes(attribute.Int("telemetry.columns", len(out)))
	return out, nil
}

// ListPopulatedColumns probes each numeric column for a non-null value under (host, topic) and returns
// those that have one, in name order. A failing probe is logged and its column left out; a cancelled
// or expired ctx is returned as an error.
func (r *PostgresRepository) ListPopulatedColumns(ctx context.Context, host, topic string) ([]domain.ColumnDescriptor, error) {
	ctx, span := r.tracer.Start(ctx, "telemetry.ListPopulatedColumns",
		trace.WithAttributes(attribute.String("telemetry.host", host), attribute.String("telemetry.topic", topic)))
	defer span.End()

	candidates, err := r.ListNumericColumns(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	populated := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.probeConcurrency)
	for i, col := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			var exists bool
			if err := r.db.QueryRow(gctx, buildProbeQuery(r.table, col.Name), host, topic).Scan(&exists); err != nil {
				if ctx.Err() == nil {
					r.log.Warn("telemetry: column probe failed; skipping column",
						"column", col.Name, "host", host, "topic", topic, "error", err)
				}
				return nil
			}
			populated[i] = exists
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, spanError(span, err)
	}

	out := make([]domain.ColumnDescriptor, 0, len(candidates))
	for i, col := range candidates {
		if populated[i] {
			out = append(out, col)
		}
	}
	span.SetAttributes(attribute.Int("telemetry.columns", len(out)))
	return out, nil
}

// QueryField returns the (time, value) series of field for (host, topic) within the optional bounds,
// ordered by time. field must be a plain identifier, otherwise ErrInvalidIdentifier is returned and no
// query is sent.
func (r *PostgresRepository) QueryField(ctx context.Context, host, topic, field string, start, end *time.Time) ([]domain.Point, error) {
	sql, args, err := buildFieldQuery(r.table, host, topic, field, start, end)
	if err != nil {
		return nil, err
	}
	ctx, span := r.tracer.Start(ctx, "telemetry.QueryField",
		trace.WithAttributes(
			attribute.String("telemetry.host", host),
			attribute.String("telemetry.topic", topic),
			attribute.String("telemetry.field", field),
		))
	defer span.End()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("query field %s: %w", field, err))
	}
	defer rows.Close()

	points := []domain.Point{}
	for rows.Next() {
		var p domain.Point
		if err := rows.Scan(&p.Time, &p.Value); err != nil {
			return nil, spanError(span, fmt.Errorf("scan point: %w", err))
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, spanError(span, fmt.Errorf("query field %s: %w", field, err))
	}
	span.SetAttributes(attribute.Int("telemetry.points", len(points)))
	return points, nil
}

// ListHosts returns every distinct host with its latest row time, most recently seen first.
func (r *PostgresRepository) ListHosts(ctx context.Context) ([]domain.HostSummary, error) {
	ctx, span := r.tracer.Start(ctx, "telemetry.ListHosts")
	defer span.End()

	sql := fmt.Sprintf("SELECT host, max(time) AS last_seen FROM %s GROUP BY host ORDER BY last_seen DESC, host",
		quoteIdentifier(r.table))
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("list hosts: %w", err))
	}
	defer rows.Close()

	var out []domain.HostSummary
	for rows.Next() {
		var h domain.HostSummary
		if err := rows.Scan(&h.Host, &h.LastSeen); err != nil {
			return nil, spanError(span, fmt.Errorf("scan host: %w", err))
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, spanError(span, fmt.Errorf("list hosts: %w", err))
	}
	return out, nil
}

// ListTopics returns the distinct topics of host in ascending order.
func (r *PostgresRepository) ListTopics(ctx context.Context, host string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "telemetry.ListTopics",
		trace.WithAttributes(attribute.String("telemetry.host", host)))
	defer span.End()

	sql := fmt.Sprintf("SELECT DISTINCT topic FROM %s WHERE host = $1 ORDER BY topic", quoteIdentifier(r.table))
	rows, err := r.db.Query(ctx, sql, host)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("list topics: %w", err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, spanError(span, fmt.Errorf("scan topic: %w", err))
		}
		out = append(out, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, spanError(span, fmt.Errorf("list topics: %w", err))
	}
	return out, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
