package pipeline

import (
	"context"
	"time"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/motion/l4perception"
)

// MotionEvent is one distinct motion event: the cycle timestamp and the
// regions that qualified in that cycle.
type MotionEvent struct {
	SessionID string
	Timestamp time.Time
	FrameSeq  uint64
	Regions   []l4perception.Region
}

// DisplaySink receives the latest annotated frame. Push-only.
type DisplaySink interface {
	Show(f *l2frames.Frame)
}

// AlertSink raises an alert. Failures are absorbed by the dispatcher.
type AlertSink interface {
	Alert(ctx context.Context) error
}

// LogSink records evidence. Its failures are surfaced to the operator.
type LogSink interface {
	LogEvent(ctx context.Context, ev MotionEvent) error
	SaveSnapshot(ctx context.Context, ev MotionEvent, f *l2frames.Frame) error
}

// EventEnder is implemented by log sinks that record when an event ends.
// It is only called under the edge dedup policy.
type EventEnder interface {
	EndEvent(ctx context.Context, sessionID string, ended time.Time) error
}

// CycleObserver is notified after every cycle, processed or skipped.
type CycleObserver interface {
	ObserveCycle(res CycleResult)
}

// AlertFunc adapts a function to AlertSink.
type AlertFunc func(ctx context.Context) error

func (f AlertFunc) Alert(ctx context.Context) error { return f(ctx) }

type discardLog struct{}

func (discardLog) LogEvent(context.Context, MotionEvent) error { return nil }
func (discardLog) SaveSnapshot(context.Context, MotionEvent, *l2frames.Frame) error {
	return nil
}

type discardDisplay struct{}

func (discardDisplay) Show(*l2frames.Frame) {}
