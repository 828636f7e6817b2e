// migrate runs DB migrations from embedded SQL for DATABASE_DRIVER postgres or sqlite (go run ./cmd/migrate).
// MongoDB needs no migrations; the server creates its indexes on startup.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"synq/backend/internal/config"
	"synq/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseDriver == config.DriverMongo {
		fmt.Fprintln(os.Stderr, "migrate: DATABASE_DRIVER=mongo has no SQL migrations; nothing to do")
		return
	}

	if err := migrate.Run(cfg.DatabaseDriver, cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
