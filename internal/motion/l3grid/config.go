package l3grid

import (
	"fmt"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
)

// Mask values.
const (
	MaskBackground uint8 = 0
	MaskShadow     uint8 = 127
	MaskForeground uint8 = 255
)

// BackgroundConfig provides a configuration builder for the background model.
type BackgroundConfig struct {
	Size l2frames.Size // canonical frame size (default: 640x480)

	History         int     // frames that influence the estimate (default: 500)
	VarThreshold    float32 // squared Mahalanobis distance for background match (default: 100)
	VarThresholdGen float32 // squared distance for matching a component at all (default: 9)
	BackgroundRatio float32 // cumulative weight treated as background (default: 0.5)
	Mixtures        int     // Gaussians per pixel (default: 3)

	VarInit float32 // variance of a new component (default: 15)
	VarMin  float32 // lower variance clamp (default: 4)
	VarMax  float32 // upper variance clamp (default: 75)

	// ComplexityReduction prunes components whose weight falls below
	// this fraction of the learning rate (default: 0.05).
	ComplexityReduction float32

	WarmupFrames  int  // frames learned before masks are emitted (default: 30)
	DetectShadows bool // classify darkened background as MaskShadow (default: false)
	ShadowTau     float32
}

// DefaultBackgroundConfig returns a BackgroundConfig loaded from the
// canonical tuning defaults file. Panics if the file cannot be found;
// intended for tests.
func DefaultBackgroundConfig() *BackgroundConfig {
	return BackgroundConfigFromTuning(config.MustLoadDefaultConfig())
}

// BackgroundConfigFromTuning builds a BackgroundConfig from a loaded TuningConfig.
// Fields not present in TuningConfig use fixed operational defaults.
func BackgroundConfigFromTuning(cfg *config.TuningConfig) *BackgroundConfig {
	return &BackgroundConfig{
		Size:                l2frames.Size{Width: cfg.GetFrameWidth(), Height: cfg.GetFrameHeight()},
		History:             cfg.GetHistory(),
		VarThreshold:        float32(cfg.GetVarThreshold()),
		VarThresholdGen:     9,
		BackgroundRatio:     float32(cfg.GetBackgroundRatio()),
		Mixtures:            cfg.GetMixtures(),
		VarInit:             float32(cfg.GetVarInit()),
		VarMin:              float32(cfg.GetVarMin()),
		VarMax:              float32(cfg.GetVarMax()),
		ComplexityReduction: 0.05,
		WarmupFrames:        cfg.GetWarmupFrames(),
		DetectShadows:       cfg.GetDetectShadows(),
		ShadowTau:           0.5,
	}
}

// Validate checks if the configuration is valid.
func (c *BackgroundConfig) Validate() error {
	if c.Size.Width <= 0 || c.Size.Height <= 0 {
		return fmt.Errorf("Size must be positive, got %v", c.Size)
	}
	if c.History < 1 {
		return fmt.Errorf("History must be positive, got %d", c.History)
	}
	if c.VarThreshold <= 0 || c.VarThresholdGen <= 0 {
		return fmt.Errorf("VarThreshold and VarThresholdGen must be positive, got %f, %f", c.VarThreshold, c.VarThresholdGen)
	}
	if c.BackgroundRatio <= 0 || c.BackgroundRatio > 1 {
		return fmt.Errorf("BackgroundRatio must be in (0, 1], got %f", c.BackgroundRatio)
	}
	if c.Mixtures < 1 || c.Mixtures > 255 {
		return fmt.Errorf("Mixtures must be in [1, 255], got %d", c.Mixtures)
	}
	if c.VarMin <= 0 || c.VarMin > c.VarMax {
		return fmt.Errorf("VarMin must be positive and <= VarMax, got %f, %f", c.VarMin, c.VarMax)
	}
	if c.VarInit < c.VarMin || c.VarInit > c.VarMax {
		return fmt.Errorf("VarInit must lie within [VarMin, VarMax], got %f", c.VarInit)
	}
	if c.ComplexityReduction < 0 || c.ComplexityReduction >= 1 {
		return fmt.Errorf("ComplexityReduction must be in [0, 1), got %f", c.ComplexityReduction)
	}
	if c.WarmupFrames < 0 {
		return fmt.Errorf("WarmupFrames must be non-negative, got %d", c.WarmupFrames)
	}
	if c.DetectShadows && (c.ShadowTau <= 0 || c.ShadowTau >= 1) {
		return fmt.Errorf("ShadowTau must be in (0, 1), got %f", c.ShadowTau)
	}
	return nil
}

// WithSize sets the canonical frame size.
func (c *BackgroundConfig) WithSize(s l2frames.Size) *BackgroundConfig {
	c.Size = s
	return c
}

// WithHistory sets the history length.
func (c *BackgroundConfig) WithHistory(n int) *BackgroundConfig {
	c.History = n
	return c
}

// WithVarThreshold sets the foreground variance threshold.
func (c *BackgroundConfig) WithVarThreshold(v float32) *BackgroundConfig {
	c.VarThreshold = v
	return c
}

// WithBackgroundRatio sets the background weight ratio.
func (c *BackgroundConfig) WithBackgroundRatio(r float32) *BackgroundConfig {
	c.BackgroundRatio = r
	return c
}

// WithWarmupFrames sets the warmup frame count.
func (c *BackgroundConfig) WithWarmupFrames(n int) *BackgroundConfig {
	c.WarmupFrames = n
	return c
}

// WithDetectShadows enables or disables shadow classification.
func (c *BackgroundConfig) WithDetectShadows(enabled bool) *BackgroundConfig {
	c.DetectShadows = enabled
	return c
}
