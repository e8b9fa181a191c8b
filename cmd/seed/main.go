// seed inserts development users and sample telemetry for local testing.
// Idempotent: existing users are kept and telemetry is only inserted when the seed host has no rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"mqtt-monitor/backend/internal/config"
	"mqtt-monitor/backend/internal/db"
	identityservice "mqtt-monitor/backend/internal/identity/service"
	"mqtt-monitor/backend/internal/security"
	userdomain "mqtt-monitor/backend/internal/user/domain"
	userrepo "mqtt-monitor/backend/internal/user/repository"
)

const (
	devPassword = "password123"
	seedHost    = "dev-plc-1"
)

var devUsers = []struct {
	username string
	role     userdomain.Role
}{
	{"admin", userdomain.RoleAdmin},
	{"editor", userdomain.RoleEditor},
	{"viewer", userdomain.RoleViewer},
}

// sampleTopic mirrors one numeric publisher payload: the populated columns and a base value for each.
type sampleTopic struct {
	topic   string
	unit    string
	columns map[string]float64
}

var sampleTopics = []sampleTopic{
	{"factory/sensor1/temperature", "°C", map[string]float64{"temperature": 23.5, "humidity": 65.2}},
	{"factory/sensor2/pressure", "hPa", map[string]float64{"pressure": 1013.25, "voltage": 12.6}},
	{"plc/motor1/speed", "rpm", map[string]float64{"speed": 1450, "current": 2.3, "power": 450.5}},
	{"sensors/flow1/rate", "L/min", map[string]float64{"flow": 125.7, "level": 78.3, "count": 1250}},
	{"status", "", map[string]float64{"value": 1}},
}

// seedColumns is the column order used for COPY.
var seedColumns = []string{"time", "host", "topic", "value", "temperature", "humidity", "pressure", "voltage",
	"speed", "current", "power", "flow", "level", "count", "unit", "quality"}

func main() {
	points := flag.Int("points", 720, "Samples per topic, one per minute ending now")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	auth := identityservice.NewAuthService(userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), nil, clockwork.NewRealClock())
	for _, u := range devUsers {
		_, err := auth.CreateUser(ctx, u.username, u.username+"@example.com", devPassword, u.role)
		switch {
		case errors.Is(err, identityservice.ErrUsernameTaken):
			log.Printf("User %q already exists. Skipping.", u.username)
		case err != nil:
			log.Fatalf("create user %s: %v", u.username, err)
		default:
			fmt.Printf("Dev login: %s / %s (%s)\n", u.username, devPassword, u.role)
		}
	}

	pool, err := db.OpenPool(ctx, cfg.TelemetryDSN(), db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("telemetry db: %v", err)
	}
	defer pool.Close()

	table := pgx.Identifier{cfg.TelemetryTable}
	var exists bool
	if err := pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+table.Sanitize()+" WHERE host = $1)", seedHost).Scan(&exists); err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if exists {
		log.Printf("Telemetry for %s already present. Skipping.", seedHost)
		return
	}

	rows := sampleRows(time.Now().UTC().Truncate(time.Minute), *points)
	n, err := pool.CopyFrom(ctx, table, seedColumns, pgx.CopyFromRows(rows))
	if err != nil {
		log.Fatalf("insert telemetry: %v", err)
	}
	log.Printf("Seed completed successfully: %d telemetry rows for %s.", n, seedHost)
}

// sampleRows builds n rows per topic ending at end, one minute apart, with a slow sine drift around each base value.
func sampleRows(end time.Time, n int) [][]any {
	rows := make([][]any, 0, n*len(sampleTopics))
	for _, st := range sampleTopics {
		for i := n - 1; i >= 0; i-- {
			ts := end.Add(-time.Duration(i) * time.Minute)
			wave := 1 + 0.05*math.Sin(float64(i)/30)
			row := make([]any, len(seedColumns))
			row[0], row[1], row[2] = ts, seedHost, st.topic
			for j, col := range seedColumns[3:14] {
				base, ok := st.columns[col]
				if !ok {
					continue
				}
				if col == "count" {
					row[3+j] = int64(base) + int64(n-i)
					continue
				}
				row[3+j] = math.Round(base*wave*100) / 100
			}
			if st.unit != "" {
				row[14] = st.unit
			}
			row[15] = "good"
			rows = append(rows, row)
		}
	}
	return rows
}
