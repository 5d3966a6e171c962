package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/motionwatch/internal/config"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, "; ") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// options are the resolved command-line settings. Deployment environment
// values are the flag defaults.
type options struct {
	Camera     string
	ReplayDir  string
	ReplayLoop bool
	Synthetic  bool
	MaxFrames  uint64

	DBPath      string
	DevMode     bool
	SnapshotDir string
	Listen      string
	GRPCListen  string
	TuningPath  string
	LogFile     string
	Timezone    string

	SirenPort     string
	SirenBaud     int
	AlertCommands stringList

	Record            bool
	BgFlushInterval   time.Duration
	BgFlushDisable    bool
	RestoreBackground bool
	PruneBackground   int
}

func parseOptions(args []string, dep *config.Deployment, errOut io.Writer) (*options, error) {
	o := &options{AlertCommands: append(stringList(nil), dep.AlertCommands...)}
	fs := flag.NewFlagSet("motionwatch", flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.StringVar(&o.Camera, "camera", dep.Camera, "Camera device index or path")
	fs.StringVar(&o.ReplayDir, "replay", dep.ReplayDir, "Replay image files from this directory instead of a camera")
	fs.BoolVar(&o.ReplayLoop, "replay-loop", false, "Restart the replay directory when it runs out")
	fs.BoolVar(&o.Synthetic, "synthetic", false, "Use a synthetic scene instead of a camera (development)")
	fs.Uint64Var(&o.MaxFrames, "max-frames", 0, "Stop after this many synthetic frames (0 = unlimited)")

	fs.StringVar(&o.DBPath, "db", dep.DBPath, "SQLite database path")
	fs.BoolVar(&o.DevMode, "dev", false, "Read migrations from the source tree")
	fs.StringVar(&o.SnapshotDir, "snapshots", dep.SnapshotDir, "Directory for motion snapshots")
	fs.StringVar(&o.Listen, "listen", dep.Listen, "HTTP listen address")
	fs.StringVar(&o.GRPCListen, "grpc-listen", dep.GRPCListen, "gRPC health listen address (empty disables)")
	fs.StringVar(&o.TuningPath, "config", dep.TuningConfig, "Tuning configuration JSON (empty uses built-in defaults)")
	fs.StringVar(&o.LogFile, "log-file", dep.LogFile, "Also write logs to this rotating file")
	fs.StringVar(&o.Timezone, "timezone", "Local", "Time zone for operator-facing timestamps")

	fs.StringVar(&o.SirenPort, "siren-port", dep.SirenPort, "Serial port of an alarm siren (empty disables)")
	fs.IntVar(&o.SirenBaud, "siren-baud", dep.SirenBaud, "Siren serial baud rate")
	fs.Var(&o.AlertCommands, "alert-command", "Command run on each alert; repeatable. {title} and {message} are substituted")

	fs.BoolVar(&o.Record, "record", true, "Start with recording enabled")
	fs.DurationVar(&o.BgFlushInterval, "bg-flush-interval", 60*time.Second, "Interval between background model snapshots")
	fs.BoolVar(&o.BgFlushDisable, "bg-flush-disable", false, "Disable periodic background model snapshots")
	fs.BoolVar(&o.RestoreBackground, "restore-background", false, "Seed the background model from the latest stored snapshot")
	fs.IntVar(&o.PruneBackground, "bg-keep", 50, "Background snapshots kept after each shutdown flush (0 keeps all)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if o.Listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if o.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if o.PruneBackground < 0 {
		return nil, fmt.Errorf("bg-keep must be >= 0")
	}
	return o, nil
}

// flushInterval is the effective periodic flush interval; zero disables.
func (o *options) flushInterval() time.Duration {
	if o.BgFlushDisable || o.BgFlushInterval <= 0 {
		return 0
	}
	return o.BgFlushInterval
}

func (o *options) location() (*time.Location, error) {
	if o.Timezone == "" || o.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", o.Timezone, err)
	}
	return loc, nil
}
