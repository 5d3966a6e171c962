//go:build gocv

package l1capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/timeutil"
	"gocv.io/x/gocv"
)

// CameraSource reads frames from a local capture device or stream URL.
type CameraSource struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	clock   timeutil.Clock
	seq     uint64
}

// CameraSupported reports whether this binary can open cameras.
const CameraSupported = true

// OpenCamera opens device, which is either a camera index ("0") or a URL.
func OpenCamera(device string, clock timeutil.Clock) (*CameraSource, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture device %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture device %q did not open", device)
	}
	return &CameraSource{capture: capture, mat: gocv.NewMat(), clock: clock}, nil
}

func (c *CameraSource) NextFrame(ctx context.Context) (*l2frames.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil, ErrUnavailable
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, ErrUnavailable
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, ErrUnavailable
	}
	c.seq++
	return l2frames.NewFrame(c.seq, c.clock.Now(), img), nil
}

// Close releases the device.
func (c *CameraSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.mat.Close()
	c.capture = nil
	return err
}
