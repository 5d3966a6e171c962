package adapters

import (
	"sync"
	"time"

	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
)

// FrameBuffer is the display sink: it keeps the latest annotated frame
// encoded as JPEG for the live view endpoint.
type FrameBuffer struct {
	Quality int

	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	updated time.Time
}

// NewFrameBuffer returns an empty buffer encoding at quality 80.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{Quality: 80}
}

func (b *FrameBuffer) Show(f *l2frames.Frame) {
	data, err := l2frames.EncodeJPEG(f, b.Quality)
	if err != nil {
		monitoring.Logf("[display] %v", err)
		return
	}
	b.mu.Lock()
	b.jpeg, b.seq, b.updated = data, f.Seq, f.CapturedAt
	b.mu.Unlock()
}

// Latest returns the newest frame, its sequence number and capture time.
// ok is false until the first frame arrives.
func (b *FrameBuffer) Latest() (jpeg []byte, seq uint64, at time.Time, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.jpeg == nil {
		return nil, 0, time.Time{}, false
	}
	return b.jpeg, b.seq, b.updated, true
}
