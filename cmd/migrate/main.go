// Command migrate manages the marketplace PostgreSQL schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/souq/backend/internal/infrastructure/config"
	"github.com/souq/backend/internal/infrastructure/logger"
	"github.com/souq/backend/internal/infrastructure/migration"
)

const defaultMigrationsPath = "migrations"

// invocation is what a command sees: its positional arguments, the resolved
// migrations directory and, for schema commands, an open migrator.
type invocation struct {
	args     []string
	path     string
	dbURL    string
	log      *zap.Logger
	migrator *migration.Migrator
}

type command struct {
	usage   string
	summary string
	// offline commands only touch the migrations directory
	offline bool
	run     func(inv *invocation) error
}

var commands = map[string]command{
	"up": {usage: "up", summary: "Apply all pending migrations", run: func(inv *invocation) error {
		return inv.migrator.Up()
	}},
	"down": {usage: "down", summary: "Roll back all migrations", run: func(inv *invocation) error {
		return inv.migrator.Down()
	}},
	"steps": {usage: "steps <n>", summary: "Apply n migrations (negative rolls back)", run: func(inv *invocation) error {
		n, err := inv.intArg()
		if err != nil {
			return err
		}
		return inv.migrator.Steps(n)
	}},
	"goto": {usage: "goto <version>", summary: "Migrate up or down to a version", run: func(inv *invocation) error {
		n, err := inv.intArg()
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.New("version must not be negative")
		}
		return inv.migrator.GoTo(uint(n))
	}},
	"force": {usage: "force <version>", summary: "Set the version after a manual repair", run: func(inv *invocation) error {
		n, err := inv.intArg()
		if err != nil {
			return err
		}
		return inv.migrator.Force(n)
	}},
	"version": {usage: "version", summary: "Show the applied version", run: func(inv *invocation) error {
		status, err := inv.migrator.Status()
		if err != nil {
			return err
		}
		if !status.Applied {
			inv.log.Info("No migrations applied")
			return nil
		}
		inv.log.Info("Current migration version",
			zap.Uint("version", status.Version),
			zap.Bool("dirty", status.Dirty),
		)
		return nil
	}},
	"create": {usage: "create <name> [desc]", summary: "Create the next numbered migration pair", offline: true, run: func(inv *invocation) error {
		if len(inv.args) < 1 {
			return errors.New("migration name required")
		}
		var description string
		if len(inv.args) > 1 {
			description = inv.args[1]
		}
		mf, err := migration.CreateMigration(inv.path, inv.args[0], description)
		if err != nil {
			return err
		}
		inv.log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {usage: "list", summary: "List available migrations", offline: true, run: func(inv *invocation) error {
		names, err := migration.ListMigrations(inv.path)
		if err != nil {
			return err
		}
		inv.log.Info("Available migrations", zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return nil
	}},
}

func main() {
	pathFlag := flag.String("path", "", "Path to migrations directory (default: ./migrations)")
	urlFlag := flag.String("database-url", "", "postgres:// URL (default: built from SOUQ_DATABASE_*)")
	levelFlag := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}
	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:       *levelFlag,
		Format:      "console",
		Output:      "stdout",
		TimeFormat:  "2006-01-02 15:04:05",
		ServiceName: "souq-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	path, err := resolveMigrationsPath(*pathFlag)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	log = log.With(zap.String("command", name), zap.String("migrations_path", path))

	inv := &invocation{args: flag.Args()[1:], path: path, dbURL: *urlFlag, log: log}
	if !cmd.offline {
		closeDB, err := inv.openMigrator()
		if err != nil {
			log.Fatal("Failed to open migrator", zap.Error(err))
		}
		defer closeDB()
	}

	if err := cmd.run(inv); err != nil {
		log.Fatal("Migration command failed", zap.String("usage", cmd.usage), zap.Error(err))
	}
}

// openMigrator connects with -database-url when given, else with the
// server's database settings
func (inv *invocation) openMigrator() (func(), error) {
	if inv.dbURL != "" {
		m, err := migration.NewFromURL(inv.dbURL, inv.path, inv.log)
		if err != nil {
			return nil, err
		}
		inv.migrator = m
		return func() { _ = m.Close() }, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, inv.path, inv.log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	inv.migrator = m
	return func() { _ = m.Close() }, nil
}

func (inv *invocation) intArg() (int, error) {
	if len(inv.args) < 1 {
		return 0, errors.New("missing numeric argument")
	}
	return strconv.Atoi(inv.args[0])
}

// resolveMigrationsPath prefers the flag, then ./migrations, then the
// migrations directory two levels above the binary
func resolveMigrationsPath(flagPath string) (string, error) {
	if flagPath != "" {
		return filepath.Abs(flagPath)
	}
	if _, err := os.Stat(defaultMigrationsPath); err == nil {
		return filepath.Abs(defaultMigrationsPath)
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}
	return filepath.Abs(defaultMigrationsPath)
}

func printUsage() {
	fmt.Println("Souq database migration tool\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range []string{"up", "down", "steps", "goto", "version", "force", "create", "list"} {
		cmd := commands[name]
		fmt.Printf("  %-22s%s\n", cmd.usage, cmd.summary)
	}
	fmt.Println(`
Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -database-url string  postgres:// URL overriding the SOUQ_DATABASE_* settings
  -log-level string     Log level: debug, info, warn, error (default: info)

Without -database-url the server's SOUQ_DATABASE_* variables are used.`)
}
