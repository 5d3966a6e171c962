//go:build !gocv

package l1capture

import (
	"context"
	"fmt"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/timeutil"
)

// CameraSource is unavailable without OpenCV.
type CameraSource struct{}

// CameraSupported reports whether this binary can open cameras.
const CameraSupported = false

// OpenCamera is a stub implementation when OpenCV support is disabled.
// Build with -tags=gocv to enable camera capture.
func OpenCamera(device string, clock timeutil.Clock) (*CameraSource, error) {
	return nil, fmt.Errorf("camera support not enabled: rebuild with -tags=gocv to open %q", device)
}

func (*CameraSource) NextFrame(context.Context) (*l2frames.Frame, error) { return nil, ErrUnavailable }
func (*CameraSource) Close() error                                       { return nil }
