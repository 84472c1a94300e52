package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hackgods/clinic-chat-scheduling/migrations"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

var log = logging.New("migrate", "info").Logger

// Usage: migrate [up|down|version|force <version>]
func main() {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		fatal("POSTGRES_DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fatal("open db", "error", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		fatal("ping db", "error", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		fatal("db driver", "error", err)
	}

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		fatal("source driver", "error", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fatal("create migrator", "error", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("migrate up", "error", err)
		}
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("migrate down", "error", err)
		}
	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatal("read version", "error", err)
		}
		log.Info("schema version", "version", v, "dirty", dirty)
		return
	case "force":
		if len(os.Args) < 3 {
			fatal("force needs a version")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fatal("invalid version", "error", err)
		}
		if err := m.Force(version); err != nil {
			fatal("force version", "error", err)
		}
		log.Info("forced version", "version", version)
		return
	default:
		fatal("unknown command", "command", cmd)
	}

	log.Info("migrations complete", "command", cmd)
}

func fatal(msg string, args ...any) {
	log.Error(msg, args...)
	os.Exit(1)
}
