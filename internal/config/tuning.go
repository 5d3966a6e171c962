package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Dedup policies accepted by dedup_policy.
const (
	DedupSecond = "second"
	DedupEdge   = "edge"
)

// TuningConfig represents the root configuration for detector tuning.
// The schema matches the /api/tuning endpoint so the same JSON can be
// used for both startup configuration and inspection at runtime.
type TuningConfig struct {
	// Background model
	History         *int     `json:"history,omitempty"`
	VarThreshold    *float64 `json:"var_threshold,omitempty"`
	BackgroundRatio *float64 `json:"background_ratio,omitempty"`
	Mixtures        *int     `json:"mixtures,omitempty"`
	VarInit         *float64 `json:"var_init,omitempty"`
	VarMin          *float64 `json:"var_min,omitempty"`
	VarMax          *float64 `json:"var_max,omitempty"`
	WarmupFrames    *int     `json:"warmup_frames,omitempty"`
	DetectShadows   *bool    `json:"detect_shadows,omitempty"`

	// Frame normalisation
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`

	// Region extraction
	MaskCutoff    *int `json:"mask_cutoff,omitempty"`
	MinRegionArea *int `json:"min_region_area,omitempty"`
	Connectivity  *int `json:"connectivity,omitempty"`

	// Debouncing
	AlertCooldown *string `json:"alert_cooldown,omitempty"` // duration string like "5s"
	AlertsEnabled *bool   `json:"alerts_enabled,omitempty"`
	DedupPolicy   *string `json:"dedup_policy,omitempty"`

	// Scheduling
	PollInterval  *string `json:"poll_interval,omitempty"`
	RetryInterval *string `json:"retry_interval,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// built-in defaults. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		History:         ptrInt(e.GetHistory()),
		VarThreshold:    ptrFloat64(e.GetVarThreshold()),
		BackgroundRatio: ptrFloat64(e.GetBackgroundRatio()),
		Mixtures:        ptrInt(e.GetMixtures()),
		VarInit:         ptrFloat64(e.GetVarInit()),
		VarMin:          ptrFloat64(e.GetVarMin()),
		VarMax:          ptrFloat64(e.GetVarMax()),
		WarmupFrames:    ptrInt(e.GetWarmupFrames()),
		DetectShadows:   ptrBool(e.GetDetectShadows()),
		FrameWidth:      ptrInt(e.GetFrameWidth()),
		FrameHeight:     ptrInt(e.GetFrameHeight()),
		MaskCutoff:      ptrInt(e.GetMaskCutoff()),
		MinRegionArea:   ptrInt(e.GetMinRegionArea()),
		Connectivity:    ptrInt(e.GetConnectivity()),
		AlertCooldown:   ptrString(e.GetAlertCooldown().String()),
		AlertsEnabled:   ptrBool(e.GetAlertsEnabled()),
		DedupPolicy:     ptrString(e.GetDedupPolicy()),
		PollInterval:    ptrString(e.GetPollInterval().String()),
		RetryInterval:   ptrString(e.GetRetryInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to the defaults returned by the Get* methods.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.History != nil && *c.History < 1 {
		return fmt.Errorf("history must be positive, got %d", *c.History)
	}
	if c.VarThreshold != nil && *c.VarThreshold <= 0 {
		return fmt.Errorf("var_threshold must be positive, got %f", *c.VarThreshold)
	}
	if c.BackgroundRatio != nil && (*c.BackgroundRatio <= 0 || *c.BackgroundRatio > 1) {
		return fmt.Errorf("background_ratio must be in (0, 1], got %f", *c.BackgroundRatio)
	}
	if c.Mixtures != nil && (*c.Mixtures < 1 || *c.Mixtures > 8) {
		return fmt.Errorf("mixtures must be between 1 and 8, got %d", *c.Mixtures)
	}
	if c.GetVarMin() <= 0 || c.GetVarMin() > c.GetVarMax() {
		return fmt.Errorf("var_min must be positive and not exceed var_max, got %f > %f", c.GetVarMin(), c.GetVarMax())
	}
	if v := c.GetVarInit(); v < c.GetVarMin() || v > c.GetVarMax() {
		return fmt.Errorf("var_init must lie within [var_min, var_max], got %f", v)
	}
	if c.WarmupFrames != nil && *c.WarmupFrames < 0 {
		return fmt.Errorf("warmup_frames must be non-negative, got %d", *c.WarmupFrames)
	}
	if c.FrameWidth != nil && *c.FrameWidth < 1 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight < 1 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.MaskCutoff != nil && (*c.MaskCutoff < 0 || *c.MaskCutoff > 254) {
		return fmt.Errorf("mask_cutoff must be between 0 and 254, got %d", *c.MaskCutoff)
	}
	if c.MinRegionArea != nil && *c.MinRegionArea < 0 {
		return fmt.Errorf("min_region_area must be non-negative, got %d", *c.MinRegionArea)
	}
	if c.Connectivity != nil && *c.Connectivity != 4 && *c.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", *c.Connectivity)
	}
	if c.DedupPolicy != nil && *c.DedupPolicy != DedupSecond && *c.DedupPolicy != DedupEdge {
		return fmt.Errorf("dedup_policy must be %q or %q, got %q", DedupSecond, DedupEdge, *c.DedupPolicy)
	}
	for name, v := range map[string]*string{
		"alert_cooldown": c.AlertCooldown,
		"poll_interval":  c.PollInterval,
		"retry_interval": c.RetryInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetHistory returns the history value or the default.
func (c *TuningConfig) GetHistory() int {
	if c.History == nil {
		return 500
	}
	return *c.History
}

// GetVarThreshold returns the var_threshold value or the default.
func (c *TuningConfig) GetVarThreshold() float64 {
	if c.VarThreshold == nil {
		return 100
	}
	return *c.VarThreshold
}

// GetBackgroundRatio returns the background_ratio value or the default.
func (c *TuningConfig) GetBackgroundRatio() float64 {
	if c.BackgroundRatio == nil {
		return 0.5
	}
	return *c.BackgroundRatio
}

// GetMixtures returns the mixtures value or the default.
func (c *TuningConfig) GetMixtures() int {
	if c.Mixtures == nil {
		return 3
	}
	return *c.Mixtures
}

// GetVarInit returns the var_init value or the default.
func (c *TuningConfig) GetVarInit() float64 {
	if c.VarInit == nil {
		return 15
	}
	return *c.VarInit
}

// GetVarMin returns the var_min value or the default.
func (c *TuningConfig) GetVarMin() float64 {
	if c.VarMin == nil {
		return 4
	}
	return *c.VarMin
}

// GetVarMax returns the var_max value or the default.
func (c *TuningConfig) GetVarMax() float64 {
	if c.VarMax == nil {
		return 75
	}
	return *c.VarMax
}

// GetWarmupFrames returns the warmup_frames value or the default.
func (c *TuningConfig) GetWarmupFrames() int {
	if c.WarmupFrames == nil {
		return 30
	}
	return *c.WarmupFrames
}

// GetDetectShadows returns the detect_shadows value or the default.
func (c *TuningConfig) GetDetectShadows() bool {
	if c.DetectShadows == nil {
		return false
	}
	return *c.DetectShadows
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 640
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 480
	}
	return *c.FrameHeight
}

// GetMaskCutoff returns the mask_cutoff value or the default.
func (c *TuningConfig) GetMaskCutoff() int {
	if c.MaskCutoff == nil {
		return 244
	}
	return *c.MaskCutoff
}

// GetMinRegionArea returns the min_region_area value or the default.
func (c *TuningConfig) GetMinRegionArea() int {
	if c.MinRegionArea == nil {
		return 1000
	}
	return *c.MinRegionArea
}

// GetConnectivity returns the connectivity value or the default.
func (c *TuningConfig) GetConnectivity() int {
	if c.Connectivity == nil {
		return 8
	}
	return *c.Connectivity
}

// GetAlertCooldown parses and returns AlertCooldown as a time.Duration.
func (c *TuningConfig) GetAlertCooldown() time.Duration {
	return parseDurationOr(c.AlertCooldown, 5*time.Second)
}

// GetAlertsEnabled returns the alerts_enabled value or the default.
func (c *TuningConfig) GetAlertsEnabled() bool {
	if c.AlertsEnabled == nil {
		return true
	}
	return *c.AlertsEnabled
}

// GetDedupPolicy returns the dedup_policy value or the default.
func (c *TuningConfig) GetDedupPolicy() string {
	if c.DedupPolicy == nil || *c.DedupPolicy == "" {
		return DedupSecond
	}
	return *c.DedupPolicy
}

// GetPollInterval parses and returns PollInterval as a time.Duration.
func (c *TuningConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, 10*time.Millisecond)
}

// GetRetryInterval parses and returns RetryInterval as a time.Duration.
func (c *TuningConfig) GetRetryInterval() time.Duration {
	return parseDurationOr(c.RetryInterval, 100*time.Millisecond)
}
