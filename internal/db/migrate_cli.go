package db

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrMigrateUsage is returned for a missing or unknown migrate action.
var ErrMigrateUsage = errors.New("invalid migrate usage")

// RunMigrateCommand runs the 'migrate' subcommand and exits non-zero on
// failure.
func RunMigrateCommand(args []string, dbPath string) {
	if err := MigrateCommand(args, dbPath, os.Stdout); err != nil {
		if errors.Is(err, ErrMigrateUsage) {
			PrintMigrateHelp(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

// MigrateCommand applies one migrate action to the session database at
// dbPath and reports progress on out. The database is opened without
// running migrations; the action manages the schema.
func MigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: missing action", ErrMigrateUsage)
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	needsArg := action == "version" || action == "force"
	if needsArg && len(args) < 2 {
		return fmt.Errorf("%w: %s needs a version number", ErrMigrateUsage, action)
	}
	switch action {
	case "up", "down", "status", "version", "force":
	default:
		return fmt.Errorf("%w: unknown action %q", ErrMigrateUsage, action)
	}

	migrationsFS, err := MigrationsFS()
	if err != nil {
		return err
	}
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		fmt.Fprintln(out, "All migrations applied")
	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		fmt.Fprintln(out, "Rolled back one migration")
	case "version":
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: invalid version %q", ErrMigrateUsage, args[1])
		}
		if err := database.MigrateTo(migrationsFS, uint(v)); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", v, err)
		}
	case "force":
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: invalid version %q", ErrMigrateUsage, args[1])
		}
		if err := database.MigrateForce(migrationsFS, v); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
	}
	return writeMigrateStatus(out, database)
}

func writeMigrateStatus(out io.Writer, database *DB) error {
	migrationsFS, err := MigrationsFS()
	if err != nil {
		return err
	}
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "schema version %v of %v (dirty: %v)\n",
		status["current_version"], status["latest_version"], status["dirty"])
	if dirty, _ := status["dirty"].(bool); dirty {
		fmt.Fprintln(out, "A migration failed mid-way. Fix the database, then run: tryon-server migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprintln(w, `Usage: tryon-server migrate <action> [args]

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show current and latest schema version
  version <n>        Migrate up or down to version n
  force <n>          Force the recorded version (dirty-state recovery only)
  help               Show this help`)
}
