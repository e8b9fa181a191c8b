package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrInvalidIdentifier is returned when a table or field name is not a plain SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a plain SQL identifier: a letter or underscore
// followed by letters, digits or underscores.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildFieldQuery returns the query text and bound arguments selecting (time, field) for (host, topic).
// Only validated, quoted identifiers are interpolated; every value is a $n parameter.
func buildFieldQuery(table, host, topic, field string, start, end *time.Time) (string, []any, error) {
	if !ValidIdentifier(table) {
		return "", nil, fmt.Errorf("table %q: %w", table, ErrInvalidIdentifier)
	}
	if !ValidIdentifier(field) {
		return "", nil, fmt.Errorf("field %q: %w", field, ErrInvalidIdentifier)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT time, %s::double precision FROM %s WHERE host = $1 AND topic = $2",
		quoteIdentifier(field), quoteIdentifier(table))
	args := []any{host, topic}
	if start != nil {
		args = append(args, *start)
		fmt.Fprintf(&b, " AND time >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		fmt.Fprintf(&b, " AND time <= $%d", len(args))
	}
	b.WriteString(" ORDER BY time")
	return b.String(), args, nil
}

// buildProbeQuery returns a query reporting whether column has any non-null value for ($1 host, $2 topic).
func buildProbeQuery(table, column string) string {
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE host = $1 AND topic = $2 AND %s IS NOT NULL)",
		quoteIdentifier(table), quoteIdentifier(column))
}
