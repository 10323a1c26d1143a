package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"github.com/ManuelReschke/fitsync/internal/pkg/env"
)

func main() {
	if err := env.SetupEnvFile(); err != nil {
		log.Warnf("[Migrate] %v, using process environment only", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load().Database
	source := env.GetEnv("MIGRATIONS_PATH", "file://migrations")
	log.Infof("[Migrate] Connecting to %s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	m, err := migrate.New(source, databaseURL(cfg))
	if err != nil {
		log.Fatalf("[Migrate] Init failed: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Errorf("[Migrate] Close failed: %v, %v", sourceErr, dbErr)
		}
	}()

	if err := run(m, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("[Migrate] %v", err)
	}
}

// databaseURL builds the golang-migrate MySQL URL. Multi statements are
// required for migration files with more than one statement.
func databaseURL(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
}

type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

func run(m migrator, command string, args []string) error {
	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("[Migrate] No change: database is up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("up: %w", err)
		}
		log.Info("[Migrate] Migrations applied")

	case "down":
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("down: %w", err)
		}
		log.Info("[Migrate] Rolled back the last migration")

	case "goto":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		err = m.Migrate(uint(version))
		if errors.Is(err, migrate.ErrNoChange) {
			log.Infof("[Migrate] No change: database is already at version %d", version)
			return nil
		}
		if err != nil {
			return fmt.Errorf("goto %d: %w", version, err)
		}
		log.Infof("[Migrate] Migrated to version %d", version)

	case "force":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force %d: %w", version, err)
		}
		log.Infof("[Migrate] Forced version %d", version)

	case "version", "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("[Migrate] No migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		suffix := ""
		if dirty {
			suffix = " (dirty)"
		}
		log.Infof("[Migrate] Current version: %d%s", version, suffix)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func versionArg(args []string) (uint64, error) {
	if len(args) < 1 {
		return 0, errors.New("a version number is required")
	}
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	return version, nil
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up        - apply all pending migrations")
	fmt.Println("  down      - roll back the last migration")
	fmt.Println("  goto N    - migrate to version N")
	fmt.Println("  force N   - set version N without running migrations")
	fmt.Println("  version   - show the current migration version")
}
