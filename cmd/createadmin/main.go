// createadmin bootstraps an admin account, or with -reset-password sets the password of an existing one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"mqtt-monitor/backend/internal/config"
	"mqtt-monitor/backend/internal/db"
	identityservice "mqtt-monitor/backend/internal/identity/service"
	"mqtt-monitor/backend/internal/security"
	userdomain "mqtt-monitor/backend/internal/user/domain"
	userrepo "mqtt-monitor/backend/internal/user/repository"
)

func main() {
	username := flag.String("username", "admin", "Admin username")
	email := flag.String("email", "admin@example.com", "Admin email")
	password := flag.String("password", "", "Admin password (or ADMIN_PASSWORD)")
	reset := flag.Bool("reset-password", false, "Set the password of an existing user instead of creating one")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if *password == "" {
		log.Fatal("password is required: pass -password or set ADMIN_PASSWORD")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	auth := identityservice.NewAuthService(userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), nil, clockwork.NewRealClock())
	if *reset {
		if err := auth.ResetPassword(ctx, *username, *password); err != nil {
			log.Fatalf("reset password: %v", err)
		}
		fmt.Printf("Password updated for %q\n", *username)
		return
	}

	u, err := auth.CreateUser(ctx, *username, *email, *password, userdomain.RoleAdmin)
	if errors.Is(err, identityservice.ErrUsernameTaken) {
		fmt.Printf("User %q already exists; use -reset-password to change its password\n", *username)
		return
	}
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	fmt.Printf("Created admin user %q (id %s)\n", u.Username, u.ID)
	fmt.Println("Please change the password after first login!")
}
