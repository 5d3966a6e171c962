package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/db"
	"github.com/banshee-data/motionwatch/internal/security"
	"go.uber.org/multierr"
)

// runExportCSV handles `motionwatch export-csv [flags] [file]`, writing the
// snapshot log (Timestamp,Image_Path) to file, or stdout when file is "-".
func runExportCSV(args []string, dep *config.Deployment, stdout, errOut io.Writer) (err error) {
	fs := flag.NewFlagSet("export-csv", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dbPath := fs.String("db", dep.DBPath, "SQLite database path")
	tz := fs.String("timezone", "Local", "Time zone for exported timestamps")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out := "snapshots_log.csv"
	if fs.NArg() > 0 {
		out = fs.Arg(0)
	}
	loc, err := (&options{Timezone: *tz}).location()
	if err != nil {
		return err
	}

	store, err := db.OpenDB(*dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	if out == "-" {
		return store.WriteCSV(stdout, loc)
	}
	if err := security.ValidateExportPath(out); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	if err := store.WriteCSV(f, loc); err != nil {
		return err
	}
	log.Printf("exported snapshot log to %s", out)
	return nil
}
