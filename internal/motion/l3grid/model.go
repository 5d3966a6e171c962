package l3grid

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
)

// ErrDimensionMismatch reports a frame whose size differs from the model's.
// Frames must be normalised to the canonical size before they reach the model.
var ErrDimensionMismatch = errors.New("frame size does not match background model")

// Model is an adaptive per-pixel mixture-of-Gaussians background estimator.
// Each pixel keeps up to Mixtures RGB Gaussians with a shared (isotropic)
// variance per component, ordered by weight. Frames must be fed in capture
// order; UpdateAndExtract classifies and learns in one pass.
type Model struct {
	mu  sync.Mutex
	cfg BackgroundConfig

	frames  int
	weights []float32 // pixels*K
	vars    []float32 // pixels*K
	means   []float32 // pixels*K*3
	modes   []uint8   // live components per pixel
}

// NewModel allocates a model for frames of cfg.Size.
func NewModel(cfg *BackgroundConfig) (*Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil background config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid background config: %w", err)
	}
	m := &Model{cfg: *cfg}
	m.allocate()
	return m, nil
}

func (m *Model) allocate() {
	n := m.cfg.Size.Pixels()
	k := m.cfg.Mixtures
	m.frames = 0
	m.weights = make([]float32, n*k)
	m.vars = make([]float32, n*k)
	m.means = make([]float32, n*k*3)
	m.modes = make([]uint8, n)
}

// Config returns a copy of the model configuration.
func (m *Model) Config() BackgroundConfig { return m.cfg }

// Size returns the frame size the model accepts.
func (m *Model) Size() l2frames.Size { return m.cfg.Size }

// FramesSeen returns the number of frames learned since the last reset.
func (m *Model) FramesSeen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Warm reports whether the model has finished its warmup.
func (m *Model) Warm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames > m.cfg.WarmupFrames
}

// Reset discards all learned statistics.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocate()
}

// learningRate follows 1/n while the model is warming up so the first frames
// seed it quickly, then settles at 1/History.
func (m *Model) learningRate() float32 {
	if m.frames <= m.cfg.WarmupFrames {
		n := m.frames
		if n > m.cfg.History {
			n = m.cfg.History
		}
		return 1 / float32(n)
	}
	return 1 / float32(m.cfg.History)
}

// UpdateAndExtract classifies f against the current model, then folds f into
// it. While warming up the returned mask is all background.
func (m *Model) UpdateAndExtract(f *l2frames.Frame) (*Mask, error) {
	if got := f.Size(); got != m.cfg.Size {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrDimensionMismatch, got, m.cfg.Size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.frames++
	alpha := m.learningRate()
	emit := m.frames > m.cfg.WarmupFrames
	mask := NewMask(m.cfg.Size)

	w := m.cfg.Size.Width
	pix := f.Image.Pix
	stride := f.Image.Stride
	for y := 0; y < m.cfg.Size.Height; y++ {
		row := pix[y*stride:]
		for x := 0; x < w; x++ {
			o := x * 4
			data := [3]float32{float32(row[o]), float32(row[o+1]), float32(row[o+2])}
			v := m.updatePixel(y*w+x, data, alpha)
			if emit {
				mask.Pix[y*w+x] = v
			}
		}
	}
	return mask, nil
}

// updatePixel runs one online mixture update and returns the mask value.
func (m *Model) updatePixel(p int, data [3]float32, alpha float32) uint8 {
	c := &m.cfg
	K := c.Mixtures
	base := p * K
	weights := m.weights[base : base+K]
	vars := m.vars[base : base+K]
	means := m.means[base*3 : (base+K)*3]

	alpha1 := 1 - alpha
	prune := -alpha * c.ComplexityReduction
	nmodes := int(m.modes[p])

	background := false
	fits := false
	var total float32

	for mode := 0; mode < nmodes; mode++ {
		weight := alpha1*weights[mode] + prune
		swapped := 0
		if !fits {
			variance := vars[mode]
			if !(variance > 0) {
				variance = c.VarInit
			}
			mu := means[mode*3 : mode*3+3]
			d0, d1, d2 := mu[0]-data[0], mu[1]-data[1], mu[2]-data[2]
			dist2 := d0*d0 + d1*d1 + d2*d2

			if total < c.BackgroundRatio && dist2 < c.VarThreshold*variance {
				background = true
			}
			if dist2 < c.VarThresholdGen*variance {
				fits = true
				weight += alpha
				k := alpha / weight
				mu[0] -= k * d0
				mu[1] -= k * d1
				mu[2] -= k * d2
				vars[mode] = clampVar(variance+k*(dist2-variance), c.VarMin, c.VarMax)

				// Keep components ordered by weight.
				for i := mode; i > 0; i-- {
					if weight < weights[i-1] {
						break
					}
					swapped++
					m.swap(weights, vars, means, i, i-1)
				}
			}
		}
		// Components are weight-ordered, so a pruned one is the tail.
		if weight < -prune {
			weight = 0
			nmodes--
		}
		weights[mode-swapped] = weight
		total += weight
	}

	if total > 0 {
		inv := 1 / total
		for i := 0; i < nmodes; i++ {
			weights[i] *= inv
		}
	}

	if !fits && alpha > 0 {
		mode := nmodes
		if nmodes == K {
			mode = K - 1
		} else {
			nmodes++
		}
		if nmodes == 1 {
			weights[mode] = 1
		} else {
			weights[mode] = alpha
			for i := 0; i < nmodes-1; i++ {
				weights[i] *= alpha1
			}
		}
		copy(means[mode*3:mode*3+3], data[:])
		vars[mode] = c.VarInit
		for i := mode; i > 0; i-- {
			if weights[i] < weights[i-1] {
				break
			}
			m.swap(weights, vars, means, i, i-1)
		}
	}
	m.modes[p] = uint8(nmodes)

	if background {
		return MaskBackground
	}
	if c.DetectShadows && m.isShadow(weights, vars, means, nmodes, data) {
		return MaskShadow
	}
	return MaskForeground
}

// isShadow reports whether data is a darkened copy of a background component.
func (m *Model) isShadow(weights, vars, means []float32, nmodes int, data [3]float32) bool {
	c := &m.cfg
	var total float32
	for mode := 0; mode < nmodes; mode++ {
		mu := means[mode*3 : mode*3+3]
		num := mu[0]*data[0] + mu[1]*data[1] + mu[2]*data[2]
		den := mu[0]*mu[0] + mu[1]*mu[1] + mu[2]*mu[2]
		if den == 0 {
			return false
		}
		if num <= den && num >= c.ShadowTau*den {
			a := num / den
			d0, d1, d2 := a*mu[0]-data[0], a*mu[1]-data[1], a*mu[2]-data[2]
			if d0*d0+d1*d1+d2*d2 < c.VarThreshold*vars[mode]*a*a {
				return true
			}
		}
		total += weights[mode]
		if total > c.BackgroundRatio {
			return false
		}
	}
	return false
}

func (m *Model) swap(weights, vars, means []float32, i, j int) {
	weights[i], weights[j] = weights[j], weights[i]
	vars[i], vars[j] = vars[j], vars[i]
	for c := 0; c < 3; c++ {
		means[i*3+c], means[j*3+c] = means[j*3+c], means[i*3+c]
	}
}

func clampVar(v, lo, hi float32) float32 {
	if math.IsNaN(float64(v)) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
