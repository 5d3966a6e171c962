package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/motionwatch/internal/monitoring"
)

// AlertDispatcher runs alert sinks on a dedicated goroutine. Dispatch never
// blocks: when the queue is full the request is dropped. Sink errors and
// panics are logged and otherwise discarded.
type AlertDispatcher struct {
	sink    AlertSink
	timeout time.Duration
	metrics *monitoring.DetectorMetrics

	queue chan struct{}
	stop  chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// AlertDispatcherConfig configures an AlertDispatcher.
type AlertDispatcherConfig struct {
	Sink AlertSink
	// QueueDepth bounds pending alerts (default: 4).
	QueueDepth int
	// Timeout bounds one sink call (default: 30s).
	Timeout time.Duration
	Metrics *monitoring.DetectorMetrics
}

// NewAlertDispatcher returns a dispatcher; call Start before Dispatch.
func NewAlertDispatcher(cfg AlertDispatcherConfig) *AlertDispatcher {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AlertDispatcher{
		sink:    cfg.Sink,
		timeout: timeout,
		metrics: cfg.Metrics,
		queue:   make(chan struct{}, depth),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker. The worker exits when ctx ends or Close is called.
func (d *AlertDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.work(ctx)
}

// Dispatch queues one alert. It reports false when the alert was dropped.
func (d *AlertDispatcher) Dispatch() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.sink == nil {
		return false
	}
	select {
	case d.queue <- struct{}{}:
		return true
	default:
		d.metrics.AlertDropped()
		monitoring.Logf("[alerts] queue full, dropping alert")
		return false
	}
}

// Close stops the worker and waits for an in-progress alert to finish.
// Queued alerts that have not started are discarded.
func (d *AlertDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	close(d.stop)
	d.mu.Unlock()
	if started {
		<-d.done
	}
}

func (d *AlertDispatcher) work(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-d.queue:
			d.fire(ctx)
		}
	}
}

func (d *AlertDispatcher) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.AlertFailed()
			monitoring.Logf("[alerts] sink panicked: %v", r)
		}
	}()
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.sink.Alert(callCtx); err != nil {
		d.metrics.AlertFailed()
		monitoring.Logf("[alerts] sink failed: %v", err)
	}
}
