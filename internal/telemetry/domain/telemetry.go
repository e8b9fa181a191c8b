// Package domain holds the read-side model of the MQTT telemetry table.
package domain

import "time"

// ColumnType is a numeric SQL data type as reported by information_schema.columns.data_type.
type ColumnType string

const (
	ColumnTypeReal            ColumnType = "real"
	ColumnTypeDoublePrecision ColumnType = "double precision"
	ColumnTypeNumeric         ColumnType = "numeric"
	ColumnTypeInteger         ColumnType = "integer"
	ColumnTypeBigint          ColumnType = "bigint"
	ColumnTypeSmallint        ColumnType = "smallint"
)

// NumericColumnTypes lists every data type treated as a chartable field.
var NumericColumnTypes = []ColumnType{
	ColumnTypeReal,
	ColumnTypeDoublePrecision,
	ColumnTypeNumeric,
	ColumnTypeInteger,
	ColumnTypeBigint,
	ColumnTypeSmallint,
}

// IsNumeric reports whether t is one of NumericColumnTypes.
func (t ColumnType) IsNumeric() bool {
	for _, n := range NumericColumnTypes {
		if t == n {
			return true
		}
	}
	return false
}

// ReservedColumns are the row key columns; they are never offered as fields.
var ReservedColumns = []string{"time", "host", "topic"}

// IsReservedColumn reports whether name is a row key column.
func IsReservedColumn(name string) bool {
	for _, c := range ReservedColumns {
		if name == c {
			return true
		}
	}
	return false
}

// ColumnDescriptor names a numeric column of the telemetry table. Recomputed per request.
type ColumnDescriptor struct {
	Name string
	Type ColumnType
}

// Point is one (time, value) sample. Value is nil when the stored value is NULL.
type Point struct {
	Time  time.Time
	Value *float64
}

// TimeWindow bounds a query. A nil End means unbounded (up to now).
type TimeWindow struct {
	Start time.Time
	End   *time.Time
}

// HostSummary is a distinct host with the time of its latest row.
type HostSummary struct {
	Host     string
	LastSeen time.Time
}

// OtherTopicGroup collects topics without a "/" separator.
const OtherTopicGroup = "other"

// TopicGroup is a set of topics sharing their first "/" segment.
type TopicGroup struct {
	Prefix string
	Topics []string
}

// Series is a resolved query for one field of one (host, topic) with its samples in time order.
type Series struct {
	Host   string
	Topic  string
	Field  string
	Range  string
	Window TimeWindow
	Points []Point
}
