package l2frames

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// Size is a frame resolution in pixels.
type Size struct {
	Width  int
	Height int
}

// Canonical is the default working resolution.
var Canonical = Size{Width: 640, Height: 480}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Pixels returns Width*Height.
func (s Size) Pixels() int { return s.Width * s.Height }

// Frame is one captured raster image. The pipeline owns a frame only for the
// cycle that produced it; nothing may retain it past the following frame.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Image      *image.NRGBA
}

// NewFrame wraps img as a Frame, converting to NRGBA when needed.
func NewFrame(seq uint64, capturedAt time.Time, img image.Image) *Frame {
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = imaging.Clone(img)
	}
	return &Frame{Seq: seq, CapturedAt: capturedAt, Image: nrgba}
}

// Size returns the frame dimensions.
func (f *Frame) Size() Size {
	b := f.Image.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// RGB returns the colour channels of the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := f.Image.PixOffset(x, y)
	p := f.Image.Pix[i : i+3 : i+3]
	return p[0], p[1], p[2]
}

// Normalize returns a frame at the target size. Frames that already match
// are returned unchanged; others are resampled.
func Normalize(f *Frame, target Size) *Frame {
	if f.Size() == target {
		return f
	}
	resized := imaging.Resize(f.Image, target.Width, target.Height, imaging.Linear)
	return &Frame{Seq: f.Seq, CapturedAt: f.CapturedAt, Image: resized}
}
