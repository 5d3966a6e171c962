package l2frames

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// RegionColor is the stroke colour used for detected regions.
var RegionColor = color.NRGBA{R: 255, A: 255}

// RegionStroke is the stroke width in pixels.
const RegionStroke = 2.0

// Annotate returns a copy of f with each rectangle outlined. The input frame
// is left untouched so the background model never sees the drawing.
func Annotate(f *Frame, boxes []image.Rectangle) *Frame {
	if len(boxes) == 0 {
		return &Frame{Seq: f.Seq, CapturedAt: f.CapturedAt, Image: imaging.Clone(f.Image)}
	}
	dc := gg.NewContextForImage(f.Image)
	dc.SetColor(RegionColor)
	dc.SetLineWidth(RegionStroke)
	for _, b := range boxes {
		dc.DrawRectangle(float64(b.Min.X), float64(b.Min.Y), float64(b.Dx()), float64(b.Dy()))
		dc.Stroke()
	}
	return &Frame{Seq: f.Seq, CapturedAt: f.CapturedAt, Image: imaging.Clone(dc.Image())}
}

// EncodeJPEG encodes the frame for evidence storage.
func EncodeJPEG(f *Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, f.Image, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	return buf.Bytes(), nil
}
