// Command motionwatch runs the motion detector: it watches a camera (or a
// replayed directory, or a synthetic scene), logs motion evidence to SQLite
// and snapshots, raises alerts, and serves the operator interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/db"
	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/version"
)

func main() {
	dep, err := config.LoadDeployment()
	if err != nil {
		log.Fatalf("Failed to load deployment settings: %v", err)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := db.RunMigrateCommand(os.Args[2:], dep.DBPath, os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		case "export-csv":
			if err := runExportCSV(os.Args[2:], dep, os.Stdout, os.Stderr); err != nil {
				log.Fatalf("export-csv: %v", err)
			}
			return
		case "version":
			printVersion(os.Stdout)
			return
		}
	}

	opts, err := parseOptions(os.Args[1:], dep, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	logOut := monitoring.ConfigureOutput(opts.LogFile)
	defer logOut.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, dep); err != nil {
		log.Fatalf("motionwatch: %v", err)
	}
	log.Print("motionwatch stopped")
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, version.String())
}
