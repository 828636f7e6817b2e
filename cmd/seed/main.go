// seed inserts development sample data for local testing (go run ./cmd/seed).
// Idempotent: skips inserts if the dev user (dev@example.com) already exists. Supports postgres and sqlite.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"synq/backend/internal/config"
	"synq/backend/internal/db"
	"synq/backend/internal/logging"
	userdomain "synq/backend/internal/user/domain"
	userrepo "synq/backend/internal/user/repository"
	waitlistdomain "synq/backend/internal/waitlist/domain"
	waitlistrepo "synq/backend/internal/waitlist/repository"
)

const (
	devUserEmail = "dev@example.com"
	devUserID    = "dev-user-001"
	memberEmail  = "member@example.com"
	memberID     = "dev-user-002"
)

var waitlistEmails = []string{
	"early-bird@example.com",
	"beta-tester@example.com",
	"curious@example.com",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.IsProduction())
	ctx := context.Background()
	if cfg.IsProduction() {
		log.Error(ctx, "seed: refusing to seed when APP_ENV=production")
		os.Exit(1)
	}

	var conn *sql.DB
	var users userrepo.Repository
	var waitlist waitlistrepo.Repository
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		conn, err = db.Open(cfg.DatabaseURL)
		if err == nil {
			users, waitlist = userrepo.NewPostgresRepository(conn), waitlistrepo.NewPostgresRepository(conn)
		}
	case config.DriverSQLite:
		conn, err = db.OpenSQLite(cfg.DatabaseURL)
		if err == nil {
			users, waitlist = userrepo.NewSQLiteRepository(conn), waitlistrepo.NewSQLiteRepository(conn)
		}
	default:
		err = fmt.Errorf("driver %q is not supported by seed", cfg.DatabaseDriver)
	}
	if err != nil {
		log.Error(ctx, "seed: open store", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Error(ctx, "seed check", "error", err)
		os.Exit(1)
	}
	if existing != nil {
		log.Info(ctx, "Seed already applied (dev@example.com exists). Skipping.")
		return
	}

	now := time.Now().UTC()
	for _, u := range []*userdomain.User{
		{ID: devUserID, Email: devUserEmail, Name: "Dev User", CreatedAt: now},
		{ID: memberID, Email: memberEmail, Name: "Member User", CreatedAt: now},
	} {
		if err := users.Create(ctx, u); err != nil {
			log.Error(ctx, "seed: create user", "email", logging.MaskEmail(u.Email), "error", err)
			os.Exit(1)
		}
	}

	for i, email := range waitlistEmails {
		e := &waitlistdomain.Entry{ID: uuid.NewString(), Email: email, CreatedAt: now.Add(time.Duration(i) * time.Minute)}
		if err := waitlist.Add(ctx, e); err != nil && !errors.Is(err, waitlistrepo.ErrDuplicate) {
			log.Error(ctx, "seed: add waitlist entry", "error", err)
			os.Exit(1)
		}
	}

	log.Info(ctx, "Seed complete. Sign in as dev@example.com (set ADMIN_EMAILS=dev@example.com to list the waitlist).")
}
