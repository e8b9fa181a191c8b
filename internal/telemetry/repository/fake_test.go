package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves fixed string pairs through pgx.Rows.
type fakeRows struct {
	data [][2]string
	i    int
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	*(dest[0].(*string)) = row[0]
	*(dest[1].(*string)) = row[1]
	return nil
}

type probeResult struct {
	exists bool
	err    error
}

type fakeRow struct {
	res probeResult
}

func (r fakeRow) Scan(dest ...any) error {
	if r.res.err != nil {
		return r.res.err
	}
	*(dest[0].(*bool)) = r.res.exists
	return nil
}

// fakeQuerier answers the column listing query with columns and each probe from probes keyed by column name.
type fakeQuerier struct {
	columns  [][2]string
	listErr  error
	probes   map[string]probeResult
	delay    time.Duration
	onProbe  func()
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu     sync.Mutex
	probed []string
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if q.listErr != nil {
		return nil, q.listErr
	}
	return &fakeRows{data: q.columns}, nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	n := q.inFlight.Add(1)
	defer q.inFlight.Add(-1)
	for {
		m := q.maxSeen.Load()
		if n <= m || q.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if q.onProbe != nil {
		q.onProbe()
	}
	if q.delay > 0 {
		select {
		case <-time.After(q.delay):
		case <-ctx.Done():
			return fakeRow{res: probeResult{err: ctx.Err()}}
		}
	}
	col := probedColumn(sql)
	q.mu.Lock()
	q.probed = append(q.probed, col)
	q.mu.Unlock()
	res, ok := q.probes[col]
	if !ok {
		return fakeRow{res: probeResult{err: errors.New("column does not exist")}}
	}
	return fakeRow{res: res}
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

// probedColumn extracts the quoted column from a probe query.
func probedColumn(sql string) string {
	end := strings.LastIndex(sql, `" IS NOT NULL`)
	if end < 0 {
		return ""
	}
	start := strings.LastIndex(sql[:end], `"`)
	return sql[start+1 : end]
}
