package l3grid

import (
	"gonum.org/v1/gonum/stat"
)

// ModelStats summarises the learned background.
type ModelStats struct {
	FramesSeen int     `json:"frames_seen"`
	Warm       bool    `json:"warm"`
	MeanModes  float64 `json:"mean_modes"`
	// Dominant component per pixel.
	WeightMean   float64 `json:"dominant_weight_mean"`
	WeightStdDev float64 `json:"dominant_weight_stddev"`
	VarMean      float64 `json:"dominant_variance_mean"`
	VarStdDev    float64 `json:"dominant_variance_stddev"`
}

// Stats computes summary statistics over all pixels with a live component.
func (m *Model) Stats() ModelStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := ModelStats{FramesSeen: m.frames, Warm: m.frames > m.cfg.WarmupFrames}
	k := m.cfg.Mixtures
	weights := make([]float64, 0, len(m.modes))
	vars := make([]float64, 0, len(m.modes))
	modes := make([]float64, len(m.modes))
	for p, n := range m.modes {
		modes[p] = float64(n)
		if n == 0 {
			continue
		}
		weights = append(weights, float64(m.weights[p*k]))
		vars = append(vars, float64(m.vars[p*k]))
	}
	out.MeanModes = stat.Mean(modes, nil)
	if len(weights) > 1 {
		out.WeightMean, out.WeightStdDev = stat.MeanStdDev(weights, nil)
		out.VarMean, out.VarStdDev = stat.MeanStdDev(vars, nil)
	} else if len(weights) == 1 {
		out.WeightMean, out.VarMean = weights[0], vars[0]
	}
	return out
}
