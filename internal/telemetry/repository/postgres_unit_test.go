package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mqtt-monitor/backend/internal/telemetry/domain"
)

func sampleColumns() [][2]string {
	return [][2]string{
		{"count", "bigint"},
		{"humidity", "double precision"},
		{"pressure", "real"},
		{"temperature", "double precision"},
	}
}

func TestNewPostgresRepository_InvalidTable(t *testing.T) {
	_, err := NewPostgresRepository(&fakeQuerier{}, Options{Table: "bad table"}, nil)
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestListNumericColumns_Fake(t *testing.T) {
	q := &fakeQuerier{columns: sampleColumns()}
	repo, err := NewPostgresRepository(q, Options{Table: "mqtt_consumer"}, nil)
	require.NoError(t, err)

	cols, err := repo.ListNumericColumns(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.ColumnDescriptor{
		{Name: "count", Type: domain.ColumnTypeBigint},
		{Name: "humidity", Type: domain.ColumnTypeDoublePrecision},
		{Name: "pressure", Type: domain.ColumnTypeReal},
		{Name: "temperature", Type: domain.ColumnTypeDoublePrecision},
	}, cols)
}

func TestListNumericColumns_SkipsUnqueryableColumns(t *testing.T) {
	q := &fakeQuerier{
		columns: [][2]string{
			{"host", "double precision"},
			{"label", "text"},
			{"temp-c", "double precision"},
			{"temperature", "double precision"},
		},
		probes: map[string]probeResult{
			"temp-c":      {exists: true},
			"temperature": {exists: true},
		},
	}
	repo, err := NewPostgresRepository(q, Options{Table: "mqtt_consumer"}, nil)
	require.NoError(t, err)

	want := []domain.ColumnDescriptor{{Name: "temperature", Type: domain.ColumnTypeDoublePrecision}}
	cols, err := repo.ListNumericColumns(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, cols)

	cols, err = repo.ListPopulatedColumns(context.Background(), "plc-1", "sensors/env")
	require.NoError(t, err)
	require.Equal(t, want, cols)
	require.Equal(t, []string{"temperature"}, q.probed)

	// Every offered field is accepted by the query builder.
	for _, c := range cols {
		_, _, err := buildFieldQuery("mqtt_consumer", "plc-1", "sensors/env", c.Name, nil, nil)
		require.NoError(t, err, c.Name)
	}
}

func TestListNumericColumns_StorageError(t *testing.T) {
	storageErr := errors.New("connection refused")
	repo, err := NewPostgresRepository(&fakeQuerier{listErr: storageErr}, Options{Table: "mqtt_consumer"}, nil)
	require.NoError(t, err)

	_, err = repo.ListNumericColumns(context.Background())
	require.ErrorIs(t, err, storageErr)

	_, err = repo.ListPopulatedColumns(context.Background(), "h", "t")
	require.ErrorIs(t, err, storageErr)
}

func TestListPopulatedColumns_FiltersAndKeepsOrder(t *testing.T) {
	for _, concurrency := range []int{1, 2, 8} {
		q := &fakeQuerier{
			columns: sampleColumns(),
			probes: map[string]probeResult{
				"count":       {exists: true},
				"humidity":    {exists: false},
				"pressure":    {err: errors.New("permission denied for column pressure")},
				"temperature": {exists: true},
			},
		}
		repo, err := NewPostgresRepository(q, Options{Table: "mqtt_consumer", ProbeConcurrency: concurrency}, nil)
		require.NoError(t, err)

		cols, err := repo.ListPopulatedColumns(context.Background(), "plc-1", "sensors/env")
		require.NoError(t, err)
		require.Equal(t, []domain.ColumnDescriptor{
			{Name: "count", Type: domain.ColumnTypeBigint},
			{Name: "temperature", Type: domain.ColumnTypeDoublePrecision},
		}, cols, "concurrency %d", concurrency)
		require.Len(t, q.probed, 4)
	}
}

func TestListPopulatedColumns_NoColumns(t *testing.T) {
	repo, err := NewPostgresRepository(&fakeQuerier{}, Options{Table: "mqtt_consumer"}, nil)
	require.NoError(t, err)
	cols, err := repo.ListPopulatedColumns(context.Background(), "h", "t")
	require.NoError(t, err)
	require.Empty(t, cols)
}

func TestListPopulatedColumns_BoundedConcurrency(t *testing.T) {
	var columns [][2]string
	probes := map[string]probeResult{}
	for _, c := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		columns = append(columns, [2]string{c, "integer"})
		probes[c] = probeResult{exists: true}
	}
	q := &fakeQuerier{columns: columns, probes: probes, delay: 5 * time.Millisecond}
	repo, err := NewPostgresRepository(q, Options{Table: "mqtt_consumer", ProbeConcurrency: 3}, nil)
	require.NoError(t, err)

	cols, err := repo.ListPopulatedColumns(context.Background(), "h", "t")
	require.NoError(t, err)
	require.Len(t, cols, 8)
	require.LessOrEqual(t, q.maxSeen.Load(), int32(3))
}

func TestListPopulatedColumns_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &fakeQuerier{
		columns: sampleColumns(),
		probes: map[string]probeResult{
			"count": {exists: true}, "humidity": {exists: true}, "pressure": {exists: true}, "temperature": {exists: true},
		},
		onProbe: cancel,
	}
	repo, err := NewPostgresRepository(q, Options{Table: "mqtt_consumer", ProbeConcurrency: 1}, nil)
	require.NoError(t, err)

	cols, err := repo.ListPopulatedColumns(ctx, "h", "t")
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, cols)
}

func TestQueryField_InvalidFieldSendsNoQuery(t *testing.T) {
	q := &fakeQuerier{listErr: errors.New("query must not be sent")}
	repo, err := NewPostgresRepository(q, Options{Table: "mqtt_consumer"}, nil)
	require.NoError(t, err)

	_, err = repo.QueryField(context.Background(), "h", "t", "value; DROP TABLE users", nil, nil)
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}
