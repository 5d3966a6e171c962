package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand handles `motionwatch migrate <action>`.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	if args[0] == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	migFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	// Open without migrating: the command manages the schema itself.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(migFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations applied.")
		return printVersion(database, migFS, out)
	case "down":
		if err := database.MigrateDown(migFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "Rolled back one migration.")
		return printVersion(database, migFS, out)
	case "status":
		exists, err := database.schemaMigrationsExists()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Schema migrations table exists: %v\n", exists)
		return printVersion(database, migFS, out)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: motionwatch migrate force <version>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := database.MigrateForce(migFS, v); err != nil {
			return err
		}
		return printVersion(database, migFS, out)
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
}

func printVersion(database *DB, migFS fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(out, "A migration failed mid-way. Inspect the database, then run: motionwatch migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: motionwatch migrate <action>

Actions:
  up                Apply all pending migrations
  down              Roll back the most recent migration
  status            Show the current schema version
  force <version>   Record a version without running migrations (recovery only)
  help              Show this help
`)
}
