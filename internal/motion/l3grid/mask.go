package l3grid

import "github.com/banshee-data/motionwatch/internal/motion/l2frames"

// Mask is the per-pixel classification of one frame, row-major. It is valid
// only for the frame that produced it.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask returns an all-background mask.
func NewMask(size l2frames.Size) *Mask {
	return &Mask{Width: size.Width, Height: size.Height, Pix: make([]uint8, size.Pixels())}
}

// At returns the mask value at (x, y).
func (m *Mask) At(x, y int) uint8 { return m.Pix[y*m.Width+x] }

// Set stores v at (x, y).
func (m *Mask) Set(x, y int, v uint8) { m.Pix[y*m.Width+x] = v }

// Count returns the number of pixels strictly above cutoff.
func (m *Mask) Count(cutoff uint8) int {
	n := 0
	for _, v := range m.Pix {
		if v > cutoff {
			n++
		}
	}
	return n
}

// Fraction returns the share of pixels strictly above cutoff.
func (m *Mask) Fraction(cutoff uint8) float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	return float64(m.Count(cutoff)) / float64(len(m.Pix))
}
