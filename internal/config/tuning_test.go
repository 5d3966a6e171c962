package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.History == nil || *cfg.History != 500 {
		t.Errorf("Expected History 500, got %v", cfg.History)
	}
	if cfg.VarThreshold == nil || *cfg.VarThreshold != 100 {
		t.Errorf("Expected VarThreshold 100, got %v", cfg.VarThreshold)
	}
	if cfg.AlertCooldown == nil || *cfg.AlertCooldown != "5s" {
		t.Errorf("Expected AlertCooldown '5s', got %v", cfg.AlertCooldown)
	}
	if cfg.PollInterval == nil || *cfg.PollInterval != "10ms" {
		t.Errorf("Expected PollInterval '10ms', got %v", cfg.PollInterval)
	}

	if cfg.GetMinRegionArea() != 1000 {
		t.Errorf("GetMinRegionArea() = %d, want 1000", cfg.GetMinRegionArea())
	}
	if cfg.GetMaskCutoff() != 244 {
		t.Errorf("GetMaskCutoff() = %d, want 244", cfg.GetMaskCutoff())
	}
	if !cfg.GetAlertsEnabled() {
		t.Error("GetAlertsEnabled() = false, want true")
	}
	if cfg.GetDedupPolicy() != DedupSecond {
		t.Errorf("GetDedupPolicy() = %q, want %q", cfg.GetDedupPolicy(), DedupSecond)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	builtin := EmptyTuningConfig()

	if fromFile.GetHistory() != builtin.GetHistory() {
		t.Errorf("history: file %d, builtin %d", fromFile.GetHistory(), builtin.GetHistory())
	}
	if fromFile.GetVarThreshold() != builtin.GetVarThreshold() {
		t.Errorf("var_threshold: file %f, builtin %f", fromFile.GetVarThreshold(), builtin.GetVarThreshold())
	}
	if fromFile.GetBackgroundRatio() != builtin.GetBackgroundRatio() {
		t.Errorf("background_ratio: file %f, builtin %f", fromFile.GetBackgroundRatio(), builtin.GetBackgroundRatio())
	}
	if fromFile.GetWarmupFrames() != builtin.GetWarmupFrames() {
		t.Errorf("warmup_frames: file %d, builtin %d", fromFile.GetWarmupFrames(), builtin.GetWarmupFrames())
	}
	if fromFile.GetAlertCooldown() != builtin.GetAlertCooldown() {
		t.Errorf("alert_cooldown: file %s, builtin %s", fromFile.GetAlertCooldown(), builtin.GetAlertCooldown())
	}
	if fromFile.GetRetryInterval() != builtin.GetRetryInterval() {
		t.Errorf("retry_interval: file %s, builtin %s", fromFile.GetRetryInterval(), builtin.GetRetryInterval())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "site.json")

	testJSON := `{
  "history": 200,
  "min_region_area": 1500,
  "alert_cooldown": "10s",
  "alerts_enabled": false,
  "dedup_policy": "edge"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetHistory() != 200 {
		t.Errorf("GetHistory() = %d, want 200", cfg.GetHistory())
	}
	if cfg.GetMinRegionArea() != 1500 {
		t.Errorf("GetMinRegionArea() = %d, want 1500", cfg.GetMinRegionArea())
	}
	if cfg.GetAlertCooldown() != 10*time.Second {
		t.Errorf("GetAlertCooldown() = %s, want 10s", cfg.GetAlertCooldown())
	}
	if cfg.GetAlertsEnabled() {
		t.Error("GetAlertsEnabled() = true, want false")
	}
	if cfg.GetDedupPolicy() != DedupEdge {
		t.Errorf("GetDedupPolicy() = %q, want %q", cfg.GetDedupPolicy(), DedupEdge)
	}
	// Omitted fields keep defaults.
	if cfg.GetVarThreshold() != 100 {
		t.Errorf("GetVarThreshold() = %f, want 100", cfg.GetVarThreshold())
	}
}

func TestLoadTuningConfig_Rejects(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"history":`, "parse config JSON"},
		{"bad duration", "dur.json", `{"alert_cooldown":"soon"}`, "alert_cooldown"},
		{"negative duration", "neg.json", `{"poll_interval":"-1s"}`, "poll_interval"},
		{"bad connectivity", "conn.json", `{"connectivity":6}`, "connectivity"},
		{"bad ratio", "ratio.json", `{"background_ratio":1.5}`, "background_ratio"},
		{"bad policy", "policy.json", `{"dedup_policy":"minute"}`, "dedup_policy"},
		{"var_init outside clamps", "var.json", `{"var_init":100}`, "var_init"},
		{"cutoff at max", "cutoff.json", `{"mask_cutoff":255}`, "mask_cutoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.json")
	data := make([]byte, 1024*1024+1)
	for i := range data {
		data[i] = ' '
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestDurationGettersFallBackOnGarbage(t *testing.T) {
	cfg := &TuningConfig{AlertCooldown: ptrString("nope"), RetryInterval: ptrString("")}
	if cfg.GetAlertCooldown() != 5*time.Second {
		t.Errorf("GetAlertCooldown() = %s, want 5s", cfg.GetAlertCooldown())
	}
	if cfg.GetRetryInterval() != 100*time.Millisecond {
		t.Errorf("GetRetryInterval() = %s, want 100ms", cfg.GetRetryInterval())
	}
}
