package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/motionwatch/internal/motion/l1capture"
	"github.com/banshee-data/motionwatch/internal/timeutil"
)

// Runner drives Session.RunCycle on a clock. After a processed cycle it
// waits PollInterval; after an idle or skipped cycle it waits RetryInterval.
// Stop takes effect before the next cycle starts; a cycle in flight always
// runs to completion.
type Runner struct {
	session *Session
	clock   timeutil.Clock
	poll    time.Duration
	retry   time.Duration
	onError func(error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// RunnerConfig contains configuration for Runner.
type RunnerConfig struct {
	Session *Session
	// Clock is optional; defaults to the real clock.
	Clock timeutil.Clock
	// PollInterval is the delay after a processed cycle (default: 10ms).
	PollInterval time.Duration
	// RetryInterval is the delay after a skipped cycle (default: 100ms).
	RetryInterval time.Duration
	// OnError is called with evidence and classification errors. Defaults to
	// logging them.
	OnError func(error)
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		session: cfg.Session,
		clock:   cfg.Clock,
		poll:    cfg.PollInterval,
		retry:   cfg.RetryInterval,
		onError: cfg.OnError,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	if r.poll <= 0 {
		r.poll = 10 * time.Millisecond
	}
	if r.retry <= 0 {
		r.retry = 100 * time.Millisecond
	}
	if r.onError == nil {
		r.onError = func(err error) { log.Printf("[runner] ERROR: %v", err) }
	}
	return r
}

// Run blocks until the context is cancelled, Stop is called, or a finite
// source runs out. Returns nil on clean shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	defer func() {
		close(doneCh)
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log.Printf("[runner] started: poll=%v retry=%v", r.poll, r.retry)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[runner] stopping due to context cancellation")
			return nil
		case <-stopCh:
			log.Printf("[runner] stopping due to Stop() call")
			return nil
		default:
		}

		res, err := r.session.RunCycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, l1capture.ErrEndOfStream):
			log.Printf("[runner] frame source exhausted")
			return nil
		case errors.Is(err, ErrSessionClosed):
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			r.onError(err)
		}

		delay := r.poll
		if res.Outcome != Processed {
			delay = r.retry
		}
		timer := r.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-stopCh:
			timer.Stop()
		case <-timer.C():
		}
	}
}

// Stop requests the runner to stop and waits for the current cycle to
// finish. It is safe to call multiple times.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	doneCh := r.doneCh
	r.mu.Unlock()

	<-doneCh
}

// IsRunning returns whether the runner loop is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
