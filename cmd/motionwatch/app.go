package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/db"
	"github.com/banshee-data/motionwatch/internal/fsutil"
	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/adapters"
	"github.com/banshee-data/motionwatch/internal/motion/l1capture"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/motion/l4perception"
	"github.com/banshee-data/motionwatch/internal/motion/l5events"
	"github.com/banshee-data/motionwatch/internal/motion/monitor"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"github.com/banshee-data/motionwatch/internal/timeutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

// syntheticSquareFrom is the first synthetic frame showing the intruder,
// chosen to land after the default warmup.
const syntheticSquareFrom = 40

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load tuning %s: %w", path, err)
	}
	return cfg, nil
}

// openSource picks the frame source: synthetic, then replay, then camera.
func openSource(o *options, clock timeutil.Clock, size l2frames.Size) (l1capture.Source, error) {
	switch {
	case o.Synthetic:
		w, h := size.Width, size.Height
		scene := l1capture.StaticScene(size, color.NRGBA{R: 40, G: 60, B: 40, A: 255}, l1capture.Square{
			Rect:  image.Rect(w*3/8, h*3/8, w*5/8, h*5/8),
			Color: color.NRGBA{R: 230, G: 230, B: 230, A: 255},
			From:  syntheticSquareFrom,
		})
		src := l1capture.NewSyntheticSource(scene)
		src.Clock = clock
		src.Limit = o.MaxFrames
		log.Printf("[source] synthetic scene %dx%d", w, h)
		return src, nil
	case o.ReplayDir != "":
		src, err := l1capture.OpenDirectory(fsutil.OSFileSystem{}, clock, o.ReplayDir, o.ReplayLoop)
		if err != nil {
			return nil, fmt.Errorf("open replay directory: %w", err)
		}
		log.Printf("[source] replaying %d frames from %s", src.Len(), o.ReplayDir)
		return src, nil
	default:
		src, err := l1capture.OpenCamera(o.Camera, clock)
		if err != nil {
			return nil, fmt.Errorf("open camera %q: %w", o.Camera, err)
		}
		log.Printf("[source] camera %s", o.Camera)
		return src, nil
	}
}

// buildAlerter assembles the alert fan-out. The returned closer releases
// any serial siren.
func buildAlerter(o *options) (pipeline.AlertSink, func() error, error) {
	sinks := adapters.MultiAlerter{adapters.LogAlerter{}}
	for _, line := range o.AlertCommands {
		c, err := adapters.ParseCommandAlerter(line)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, c)
	}
	closer := func() error { return nil }
	if o.SirenPort != "" {
		siren, err := adapters.OpenSerialSiren(o.SirenPort, adapters.PortOptions{BaudRate: o.SirenBaud})
		if err != nil {
			return nil, nil, fmt.Errorf("open siren: %w", err)
		}
		sinks = append(sinks, siren)
		closer = siren.Close
	}
	return sinks, closer, nil
}

// restoreBackground seeds model from the newest snapshot of matching size.
// A missing or incompatible snapshot leaves the model cold.
func restoreBackground(store *db.DB, model *l3grid.Model) {
	size := model.Size()
	snap, err := store.LatestBgSnapshot(size.Width, size.Height)
	switch {
	case err != nil:
		log.Printf("[background] restore lookup failed: %v", err)
	case snap == nil:
		log.Printf("[background] no stored snapshot for %dx%d", size.Width, size.Height)
	default:
		if err := model.Restore(snap); err != nil {
			log.Printf("[background] restore from session %s failed: %v", snap.SessionID, err)
			return
		}
		log.Printf("[background] restored snapshot from session %s taken %s", snap.SessionID, time.Unix(0, snap.TakenUnixNanos).UTC().Format(time.RFC3339))
	}
}

// run wires the detector and blocks until ctx ends or a finite source is
// exhausted, then shuts everything down in dependency order.
func run(ctx context.Context, o *options, dep *config.Deployment) (err error) {
	loc, err := o.location()
	if err != nil {
		return err
	}
	tuning, err := loadTuning(o.TuningPath)
	if err != nil {
		return err
	}
	clock := timeutil.RealClock{}

	db.DevMode = o.DevMode
	store, err := db.NewDB(o.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	model, err := l3grid.NewModel(l3grid.BackgroundConfigFromTuning(tuning))
	if err != nil {
		return err
	}
	if o.RestoreBackground {
		restoreBackground(store, model)
	}
	extractor, err := l4perception.NewExtractor(l4perception.ExtractParamsFromTuning(tuning))
	if err != nil {
		return err
	}
	debouncer, err := l5events.NewDebouncer(l5events.ParamsFromTuning(tuning))
	if err != nil {
		return err
	}

	source, err := openSource(o, clock, model.Size())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewDetectorMetrics(reg)

	recorder := adapters.NewEvidenceRecorder(store, fsutil.OSFileSystem{}, o.SnapshotDir)
	recorder.Location = loc
	if dep != nil && dep.ObjectStoreEnabled() {
		mirror, merr := adapters.NewMinioMirror(ctx, dep)
		if merr != nil {
			log.Printf("[objectstore] mirroring disabled: %v", merr)
		} else {
			recorder.Mirror = mirror
		}
	}

	alerter, closeAlerter, err := buildAlerter(o)
	if err != nil {
		_ = source.Close()
		return err
	}
	defer func() { err = multierr.Append(err, closeAlerter()) }()
	dispatcher := pipeline.NewAlertDispatcher(pipeline.AlertDispatcherConfig{
		Sink:    alerter,
		Metrics: metrics,
	})

	frames := adapters.NewFrameBuffer()
	activity := monitor.NewActivityPlotter(0)
	session, err := pipeline.NewSession(pipeline.SessionConfig{
		Source:        source,
		Model:         model,
		Extractor:     extractor,
		Debouncer:     debouncer,
		Clock:         clock,
		Display:       frames,
		Log:           recorder,
		Alerts:        dispatcher,
		Observer:      activity,
		Metrics:       metrics,
		Recording:     o.Record,
		AlertsEnabled: tuning.GetAlertsEnabled(),
	})
	if err != nil {
		_ = source.Close()
		return err
	}
	log.Printf("[session] %s started (recording=%v alerts=%v dedup=%s)",
		session.ID(), o.Record, tuning.GetAlertsEnabled(), tuning.GetDedupPolicy())

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Session:       session,
		Clock:         clock,
		PollInterval:  tuning.GetPollInterval(),
		RetryInterval: tuning.GetRetryInterval(),
	})
	flusher := pipeline.NewBackgroundFlusher(pipeline.BackgroundFlusherConfig{
		Model:     model,
		Store:     store,
		SessionID: session.ID(),
		Interval:  o.flushInterval(),
		Clock:     clock,
	})

	ws, err := monitor.NewWebServer(monitor.WebServerConfig{
		Address:    o.Listen,
		Detector:   session,
		Events:     store,
		Frames:     frames,
		Background: flusher,
		Model:      model,
		Tuning:     tuning,
		Gatherer:   reg,
		Activity:   activity,
		Location:   loc,
		Admin:      store.AttachAdminRoutes,
	})
	if err != nil {
		_ = session.Close()
		return err
	}

	var health *monitor.HealthServer
	if o.GRPCListen != "" {
		health = monitor.NewHealthServer()
		if herr := health.Start(o.GRPCListen); herr != nil {
			log.Printf("[health] disabled: %v", herr)
			health = nil
		} else {
			health.SetServing(true)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	dispatcher.Start(runCtx)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer cancel()
		if rerr := runner.Run(runCtx); rerr != nil {
			log.Printf("[runner] stopped: %v", rerr)
		}
	}()
	go func() {
		defer wg.Done()
		if ferr := flusher.Run(runCtx); ferr != nil {
			log.Printf("[background] flusher stopped: %v", ferr)
		}
	}()
	go func() {
		defer wg.Done()
		if serr := ws.Start(runCtx); serr != nil {
			log.Printf("[monitor] %v", serr)
			cancel()
		}
	}()

	<-runCtx.Done()
	log.Print("shutting down...")
	runner.Stop()
	flusher.Stop()
	wg.Wait()

	if health != nil {
		health.Stop()
	}
	err = multierr.Append(err, session.Close())
	dispatcher.Close()
	if _, ferr := flusher.Flush(pipeline.ReasonShutdown); ferr != nil {
		err = multierr.Append(err, fmt.Errorf("shutdown background flush: %w", ferr))
	}
	if o.PruneBackground > 0 {
		if n, perr := store.PruneBgSnapshots(o.PruneBackground); perr != nil {
			log.Printf("[background] prune failed: %v", perr)
		} else if n > 0 {
			log.Printf("[background] pruned %d old snapshots", n)
		}
	}
	return err
}
