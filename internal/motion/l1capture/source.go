package l1capture

import (
	"context"
	"errors"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
)

// ErrUnavailable reports that the device had no frame ready. It is not a
// failure: the cycle is skipped and retried after a short delay.
var ErrUnavailable = errors.New("frame unavailable")

// ErrEndOfStream reports that a finite source has no more frames.
var ErrEndOfStream = errors.New("end of frame stream")

// Source yields raw frames on demand.
type Source interface {
	// NextFrame returns the next frame or ErrUnavailable. It may block for
	// up to the device's own latency.
	NextFrame(ctx context.Context) (*l2frames.Frame, error)
	// Close releases the device. It must not be called while a NextFrame
	// call may still be running.
	Close() error
}
