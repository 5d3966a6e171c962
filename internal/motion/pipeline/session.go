package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/l1capture"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/motion/l4perception"
	"github.com/banshee-data/motionwatch/internal/motion/l5events"
	"github.com/banshee-data/motionwatch/internal/timeutil"
	"github.com/google/uuid"
)

// ErrEvidenceLost wraps log-sink failures returned from RunCycle.
var ErrEvidenceLost = errors.New("motion evidence not recorded")

// ErrSessionClosed is returned by RunCycle after Close.
var ErrSessionClosed = errors.New("session closed")

// Outcome classifies a cycle.
type Outcome int

const (
	// Idle: recording is off, nothing was captured.
	Idle Outcome = iota
	// Unavailable: the source had no frame; no state changed.
	Unavailable
	// Processed: a frame went through the whole pipeline.
	Processed
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return monitoring.OutcomeIdle
	case Unavailable:
		return monitoring.OutcomeUnavailable
	default:
		return monitoring.OutcomeProcessed
	}
}

// CycleResult describes one RunCycle call.
type CycleResult struct {
	Outcome            Outcome
	FrameSeq           uint64
	Timestamp          time.Time
	Regions            []l4perception.Region
	Motion             bool
	Actions            l5events.Actions
	ForegroundFraction float64
	AlertQueued        bool
	Err                error
}

// AlertQueue accepts fire-and-forget alert requests. AlertDispatcher
// implements it.
type AlertQueue interface {
	Dispatch() bool
}

// SessionConfig wires a Session. Source, Model, Extractor and Debouncer are
// required; the rest default to no-ops.
type SessionConfig struct {
	ID        string
	Source    l1capture.Source
	Model     *l3grid.Model
	Extractor *l4perception.Extractor
	Debouncer *l5events.Debouncer
	Clock     timeutil.Clock

	Display  DisplaySink
	Log      LogSink
	Alerts   AlertQueue
	Observer CycleObserver
	Metrics  *monitoring.DetectorMetrics

	Recording     bool
	AlertsEnabled bool
}

// Status is a point-in-time view of a session for operators.
type Status struct {
	SessionID     string         `json:"session_id"`
	Recording     bool           `json:"recording"`
	AlertsEnabled bool           `json:"alerts_enabled"`
	Debounce      l5events.State `json:"debounce"`
	Cycles        uint64         `json:"cycles"`
	Processed     uint64         `json:"processed"`
	Skipped       uint64         `json:"skipped"`
	Events        int            `json:"events"`
	LastEvent     *time.Time     `json:"last_event,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	LastErrorAt   *time.Time     `json:"last_error_at,omitempty"`
}

// Session is one detection session: the model, debouncer and motion log
// plus the operator toggles. RunCycle calls are serialised.
type Session struct {
	id        string
	source    l1capture.Source
	model     *l3grid.Model
	extractor *l4perception.Extractor
	debouncer *l5events.Debouncer
	clock     timeutil.Clock
	display   DisplaySink
	sink      LogSink
	alerts    AlertQueue
	observer  CycleObserver
	metrics   *monitoring.DetectorMetrics

	recording     atomic.Bool
	alertsEnabled atomic.Bool

	cycleMu sync.Mutex // held for the whole cycle and by Close
	closed  bool

	motionLog MotionLog

	statMu      sync.Mutex
	cycles      uint64
	processed   uint64
	skipped     uint64
	lastErr     error
	lastErrTime time.Time
}

// NewSession validates cfg and returns a session.
func NewSession(cfg SessionConfig) (*Session, error) {
	switch {
	case cfg.Source == nil:
		return nil, fmt.Errorf("session requires a frame source")
	case cfg.Model == nil:
		return nil, fmt.Errorf("session requires a background model")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("session requires a region extractor")
	case cfg.Debouncer == nil:
		return nil, fmt.Errorf("session requires a debouncer")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Display == nil {
		cfg.Display = discardDisplay{}
	}
	if cfg.Log == nil {
		cfg.Log = discardLog{}
	}
	s := &Session{
		id:        cfg.ID,
		source:    cfg.Source,
		model:     cfg.Model,
		extractor: cfg.Extractor,
		debouncer: cfg.Debouncer,
		clock:     cfg.Clock,
		display:   cfg.Display,
		sink:      cfg.Log,
		alerts:    cfg.Alerts,
		observer:  cfg.Observer,
		metrics:   cfg.Metrics,
	}
	s.recording.Store(cfg.Recording)
	s.alertsEnabled.Store(cfg.AlertsEnabled)
	return s, nil
}

// ID returns the session identifier stamped on evidence.
func (s *Session) ID() string { return s.id }

// Model returns the session's background model.
func (s *Session) Model() *l3grid.Model { return s.model }

// MotionLog returns the session's motion log.
func (s *Session) MotionLog() *MotionLog { return &s.motionLog }

// SetRecording starts or stops detection. Takes effect on the next cycle.
func (s *Session) SetRecording(on bool) {
	if s.recording.Swap(on) != on {
		log.Printf("[session %s] recording %s", s.shortID(), onOff(on))
	}
}

// Recording reports whether detection is running.
func (s *Session) Recording() bool { return s.recording.Load() }

// SetAlertsEnabled toggles alert emission. Sampled on every cycle.
func (s *Session) SetAlertsEnabled(on bool) {
	if s.alertsEnabled.Swap(on) != on {
		log.Printf("[session %s] alerts %s", s.shortID(), onOff(on))
	}
}

// AlertsEnabled reports the alerts toggle.
func (s *Session) AlertsEnabled() bool { return s.alertsEnabled.Load() }

func (s *Session) shortID() string {
	if len(s.id) > 8 {
		return s.id[:8]
	}
	return s.id
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// RunCycle performs one detection step: capture, normalise, classify,
// extract, debounce, then the requested side effects. It never reschedules
// itself. A returned error means evidence was lost (wrapped
// ErrEvidenceLost), the context ended, the session is closed, or the frame
// could not be classified.
func (s *Session) RunCycle(ctx context.Context) (CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if s.closed {
		return CycleResult{}, ErrSessionClosed
	}

	start := time.Now()
	res, err := s.runCycleLocked(ctx)
	res.Err = err
	s.record(res, err, time.Since(start))
	if s.observer != nil {
		s.observer.ObserveCycle(res)
	}
	return res, err
}

func (s *Session) runCycleLocked(ctx context.Context) (CycleResult, error) {
	if !s.recording.Load() {
		return CycleResult{Outcome: Idle}, nil
	}

	raw, err := s.source.NextFrame(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CycleResult{Outcome: Unavailable}, ctxErr
		}
		if errors.Is(err, l1capture.ErrEndOfStream) {
			return CycleResult{Outcome: Unavailable}, err
		}
		if !errors.Is(err, l1capture.ErrUnavailable) {
			monitoring.Logf("[session %s] capture: %v", s.shortID(), err)
		}
		return CycleResult{Outcome: Unavailable}, nil
	}

	frame := l2frames.Normalize(raw, s.model.Size())
	mask, err := s.model.UpdateAndExtract(frame)
	if err != nil {
		return CycleResult{Outcome: Unavailable, FrameSeq: raw.Seq}, fmt.Errorf("classify frame %d: %w", raw.Seq, err)
	}
	regions, motion := s.extractor.Extract(mask)
	now := s.clock.Now()
	actions := s.debouncer.Observe(motion, now, s.alertsEnabled.Load())

	res := CycleResult{
		Outcome:            Processed,
		FrameSeq:           frame.Seq,
		Timestamp:          now,
		Regions:            regions,
		Motion:             motion,
		Actions:            actions,
		ForegroundFraction: mask.Fraction(s.extractor.Params().Cutoff),
	}

	annotated := l2frames.Annotate(frame, l4perception.Boxes(regions))
	s.display.Show(annotated)

	// Evidence is stamped at second resolution, matching the dedup window.
	ev := MotionEvent{SessionID: s.id, Timestamp: now.Truncate(time.Second), FrameSeq: frame.Seq, Regions: regions}
	var evidenceErr error
	if actions.Has(l5events.LogEvent) {
		s.motionLog.Append(ev.Timestamp)
		s.metrics.EventLogged()
		if err := s.sink.LogEvent(ctx, ev); err != nil {
			s.metrics.SinkError("log_event")
			evidenceErr = fmt.Errorf("%w: log event at %s: %v", ErrEvidenceLost, now.Format(time.RFC3339), err)
		}
	}
	if actions.Has(l5events.SaveSnapshot) {
		if err := s.sink.SaveSnapshot(ctx, ev, annotated); err != nil {
			s.metrics.SinkError("save_snapshot")
			snapErr := fmt.Errorf("%w: snapshot at %s: %v", ErrEvidenceLost, now.Format(time.RFC3339), err)
			evidenceErr = errors.Join(evidenceErr, snapErr)
		} else {
			s.metrics.SnapshotSaved()
		}
	}
	if actions.Has(l5events.EndEvent) {
		if ender, ok := s.sink.(EventEnder); ok {
			if err := ender.EndEvent(ctx, s.id, now); err != nil {
				s.metrics.SinkError("end_event")
				evidenceErr = errors.Join(evidenceErr, fmt.Errorf("%w: end event: %v", ErrEvidenceLost, err))
			}
		}
	}
	if actions.Has(l5events.FireAlert) && s.alerts != nil {
		res.AlertQueued = s.alerts.Dispatch()
		s.metrics.AlertFired()
	}
	s.metrics.Frame(res.ForegroundFraction, len(regions))
	return res, evidenceErr
}

func (s *Session) record(res CycleResult, err error, took time.Duration) {
	s.statMu.Lock()
	s.cycles++
	if res.Outcome == Processed {
		s.processed++
	} else {
		s.skipped++
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, l1capture.ErrEndOfStream) {
		s.lastErr = err
		s.lastErrTime = s.clock.Now()
	}
	s.statMu.Unlock()

	outcome := res.Outcome.String()
	if err != nil {
		outcome = monitoring.OutcomeError
	}
	s.metrics.CycleDone(outcome, took.Seconds())
}

// Status returns a snapshot of the session for operators.
func (s *Session) Status() Status {
	now := s.clock.Now()
	st := Status{
		SessionID:     s.id,
		Recording:     s.Recording(),
		AlertsEnabled: s.AlertsEnabled(),
		Debounce:      s.debouncer.State(now),
		Events:        s.motionLog.Len(),
	}
	if last, ok := s.motionLog.Last(); ok {
		st.LastEvent = &last
	}
	s.statMu.Lock()
	st.Cycles, st.Processed, st.Skipped = s.cycles, s.processed, s.skipped
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		t := s.lastErrTime
		st.LastErrorAt = &t
	}
	s.statMu.Unlock()
	return st
}

// Close waits for any in-flight cycle, then releases the frame source.
// Later RunCycle calls return ErrSessionClosed.
func (s *Session) Close() error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.recording.Store(false)
	if err := s.source.Close(); err != nil {
		return fmt.Errorf("release frame source: %w", err)
	}
	return nil
}
