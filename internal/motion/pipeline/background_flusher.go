package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/timeutil"
)

// Snapshot reasons recorded with persisted background models.
const (
	ReasonPeriodic = "periodic"
	ReasonShutdown = "shutdown"
	ReasonManual   = "manual"
)

// ModelPersister is implemented by *l3grid.Model.
type ModelPersister interface {
	Persist(store l3grid.BgStore, sessionID, reason string, now time.Time) (int64, error)
}

// BackgroundFlusher periodically writes the session's background model to
// the database so a restart can resume without a fresh warmup.
type BackgroundFlusher struct {
	model     ModelPersister
	store     l3grid.BgStore
	sessionID string
	interval  time.Duration
	clock     timeutil.Clock
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// BackgroundFlusherConfig contains configuration for BackgroundFlusher.
type BackgroundFlusherConfig struct {
	Model     ModelPersister
	Store     l3grid.BgStore
	SessionID string
	// Interval between flushes; zero or negative disables the loop.
	Interval time.Duration
	// Clock is optional; defaults to the real clock.
	Clock timeutil.Clock
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// NewBackgroundFlusher creates a new BackgroundFlusher.
func NewBackgroundFlusher(cfg BackgroundFlusherConfig) *BackgroundFlusher {
	f := &BackgroundFlusher{
		model:     cfg.Model,
		store:     cfg.Store,
		sessionID: cfg.SessionID,
		interval:  cfg.Interval,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if f.clock == nil {
		f.clock = timeutil.RealClock{}
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f
}

// Run flushes every interval until ctx is cancelled or Stop is called. It
// does not flush on exit; shutdown persistence is the caller's final step,
// after the session has stopped learning.
func (f *BackgroundFlusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	stopCh, doneCh := f.stopCh, f.doneCh
	f.mu.Unlock()

	defer func() {
		close(doneCh)
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	if f.interval <= 0 {
		f.logger.Printf("[background] flush interval is %v, periodic flush disabled", f.interval)
		return nil
	}
	f.logger.Printf("[background] flusher started: interval=%v", f.interval)

	for {
		timer := f.clock.NewTimer(f.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-stopCh:
			timer.Stop()
			return nil
		case <-timer.C():
			f.Flush(ReasonPeriodic)
		}
	}
}

// Stop requests the flusher to stop and waits for it. Safe to call multiple times.
func (f *BackgroundFlusher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	doneCh := f.doneCh
	f.mu.Unlock()

	<-doneCh
}

// IsRunning returns whether the flusher is currently running.
func (f *BackgroundFlusher) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Flush persists the model once with the given reason and returns the row id.
func (f *BackgroundFlusher) Flush(reason string) (int64, error) {
	if f.model == nil || f.store == nil {
		return 0, nil
	}
	id, err := f.model.Persist(f.store, f.sessionID, reason, f.clock.Now())
	if err != nil {
		f.logger.Printf("[background] %s flush failed: %v", reason, err)
		return 0, err
	}
	f.logger.Printf("[background] %s flush stored as snapshot %d", reason, id)
	return id, nil
}
