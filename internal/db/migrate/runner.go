// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"

	"mqtt-monitor/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Direction is the migration direction accepted by Run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a user-supplied direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	}
	return "", fmt.Errorf("direction must be up or down, got %q", s)
}

// slogAdapter forwards golang-migrate progress output to slog.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.log.Info(fmt.Sprintf(format, v...))
}

func (a slogAdapter) Verbose() bool { return false }

// Run applies migrations in the given direction using the provided DSN.
// Returns nil on success, including when there is nothing to apply; other errors for DB or I/O failures.
// log may be nil.
func Run(dsn string, direction Direction, log *slog.Logger) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if _, err := ParseDirection(string(direction)); err != nil {
		return err
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if log != nil {
		m.Log = slogAdapter{log: log}
	}

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	if log != nil {
		version, dirty, verr := m.Version()
		switch {
		case errors.Is(verr, migrate.ErrNilVersion):
			log.Info("migrations applied", "direction", direction, "version", "none")
		case verr != nil:
			log.Warn("migrations applied; version unknown", "direction", direction, "error", verr)
		default:
			log.Info("migrations applied", "direction", direction, "version", version, "dirty", dirty)
		}
	}
	return nil
}
