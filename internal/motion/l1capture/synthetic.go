package l1capture

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/timeutil"
	"github.com/disintegration/imaging"
)

// SceneFunc renders the synthetic scene for frame seq (1-based).
type SceneFunc func(seq uint64) image.Image

// SyntheticSource renders frames from a SceneFunc and stamps them with the
// clock. DropEvery > 0 makes every DropEvery-th call report ErrUnavailable,
// which exercises the skip path.
type SyntheticSource struct {
	Scene     SceneFunc
	Clock     timeutil.Clock
	DropEvery int
	Limit     uint64

	mu     sync.Mutex
	calls  int
	seq    uint64
	closed bool
}

// NewSyntheticSource returns a source rendering scene with the real clock.
func NewSyntheticSource(scene SceneFunc) *SyntheticSource {
	return &SyntheticSource{Scene: scene, Clock: timeutil.RealClock{}}
}

func (s *SyntheticSource) NextFrame(ctx context.Context) (*l2frames.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrUnavailable
	}
	s.calls++
	if s.DropEvery > 0 && s.calls%s.DropEvery == 0 {
		return nil, ErrUnavailable
	}
	if s.Limit > 0 && s.seq >= s.Limit {
		return nil, ErrEndOfStream
	}
	s.seq++
	return l2frames.NewFrame(s.seq, s.Clock.Now(), s.Scene(s.seq)), nil
}

func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Square is a filled axis-aligned box drawn by StaticScene.
type Square struct {
	Rect  image.Rectangle
	Color color.NRGBA
	// From is the first frame (1-based) on which the square appears.
	From uint64
	// Until is the last frame on which it appears; zero means forever.
	Until uint64
}

// StaticScene draws a uniform background with the given squares overlaid.
// It is the development scene used when no camera is attached.
func StaticScene(size l2frames.Size, background color.NRGBA, squares ...Square) SceneFunc {
	base := imaging.New(size.Width, size.Height, background)
	return func(seq uint64) image.Image {
		img := imaging.Clone(base)
		for _, sq := range squares {
			if seq < sq.From || (sq.Until != 0 && seq > sq.Until) {
				continue
			}
			r := sq.Rect.Intersect(img.Rect)
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					img.SetNRGBA(x, y, sq.Color)
				}
			}
		}
		return img
	}
}
