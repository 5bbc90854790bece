package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"onetee-be/internal/config"
	"onetee-be/internal/db"
	"onetee-be/internal/logger"
	"onetee-be/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// migrator is the part of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
}

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down, steps, version or force")
	steps := flag.Int("n", 1, "steps to apply (negative rolls back) for -mode=steps, version for -mode=force")
	flag.Parse()

	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	m, err := newMigrator(database, cfg.DB.Name)
	if err != nil {
		logger.L().Fatal("failed to prepare migrations", zap.Error(err))
	}

	if err := run(m, *mode, *steps); err != nil {
		logger.L().Fatal("migration failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func embeddedSource() (source.Driver, error) {
	return iofs.New(migrations.FS, ".")
}

func newMigrator(database *sql.DB, dbName string) (*migrate.Migrate, error) {
	src, err := embeddedSource()
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(database, &postgres.Config{DatabaseName: dbName})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", src, "postgres", driver)
}

func run(m migrator, mode string, n int) error {
	log := logger.L().With(zap.String("component", "migrate"))

	var err error
	switch mode {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if n == 0 {
			return errors.New("-n must not be zero")
		}
		err = m.Steps(n)
	case "force":
		err = m.Force(n)
	case "version":
	default:
		return fmt.Errorf("unknown mode: %s (use up, down, steps, version or force)", mode)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema already up to date")
		err = nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	fmt.Fprintf(os.Stdout, "version %d (dirty=%t)\n", version, dirty)
	return nil
}
