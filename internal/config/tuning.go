package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Interpolator names accepted by the interpolator field.
var interpolators = []string{"nearest", "approx-bilinear", "bilinear", "catmull-rom"}

// TuningConfig represents the root configuration for try-on tuning
// parameters. Every field is optional; Get* accessors supply defaults for
// anything a file leaves out.
type TuningConfig struct {
	// Smoothing params
	SmoothingAlpha *float64 `json:"smoothing_alpha,omitempty"`
	AnchorAlpha    *float64 `json:"anchor_alpha,omitempty"`

	// Layout params
	EarWidthRatio  *float64 `json:"ear_width_ratio,omitempty"`
	EarLiftRatio   *float64 `json:"ear_lift_ratio,omitempty"`
	NeckWidthRatio *float64 `json:"neck_width_ratio,omitempty"`
	NeckLiftRatio  *float64 `json:"neck_lift_ratio,omitempty"`

	// Render params
	Interpolator *string `json:"interpolator,omitempty"`
	Watermark    *string `json:"watermark,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a fully populated config holding the built-in
// defaults. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SmoothingAlpha: ptrFloat64(0.18),
		AnchorAlpha:    ptrFloat64(0.18),
		EarWidthRatio:  ptrFloat64(0.48),
		EarLiftRatio:   ptrFloat64(0.15),
		NeckWidthRatio: ptrFloat64(1.2),
		NeckLiftRatio:  ptrFloat64(0.10),
		Interpolator:   ptrString("approx-bilinear"),
		Watermark:      ptrString("TryMyGold"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/tryon/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
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
	for name, v := range map[string]*float64{
		"smoothing_alpha": c.SmoothingAlpha,
		"anchor_alpha":    c.AnchorAlpha,
	} {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
		}
	}

	for name, v := range map[string]*float64{
		"ear_width_ratio":  c.EarWidthRatio,
		"neck_width_ratio": c.NeckWidthRatio,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	for name, v := range map[string]*float64{
		"ear_lift_ratio":  c.EarLiftRatio,
		"neck_lift_ratio": c.NeckLiftRatio,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.Interpolator != nil && *c.Interpolator != "" {
		name := strings.ToLower(*c.Interpolator)
		valid := false
		for _, known := range interpolators {
			if name == known {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unknown interpolator %q (want one of %s)", *c.Interpolator, strings.Join(interpolators, ", "))
		}
	}

	return nil
}

// GetSmoothingAlpha returns the mesh-wide smoothing factor or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.18
	}
	return *c.SmoothingAlpha
}

// GetAnchorAlpha returns the per-anchor smoothing factor or the default.
func (c *TuningConfig) GetAnchorAlpha() float64 {
	if c.AnchorAlpha == nil {
		return 0.18
	}
	return *c.AnchorAlpha
}

// GetEarWidthRatio returns the ear_width_ratio value or the default.
func (c *TuningConfig) GetEarWidthRatio() float64 {
	if c.EarWidthRatio == nil {
		return 0.48
	}
	return *c.EarWidthRatio
}

// GetEarLiftRatio returns the ear_lift_ratio value or the default.
func (c *TuningConfig) GetEarLiftRatio() float64 {
	if c.EarLiftRatio == nil {
		return 0.15
	}
	return *c.EarLiftRatio
}

// GetNeckWidthRatio returns the neck_width_ratio value or the default.
func (c *TuningConfig) GetNeckWidthRatio() float64 {
	if c.NeckWidthRatio == nil {
		return 1.2
	}
	return *c.NeckWidthRatio
}

// GetNeckLiftRatio returns the neck_lift_ratio value or the default.
func (c *TuningConfig) GetNeckLiftRatio() float64 {
	if c.NeckLiftRatio == nil {
		return 0.10
	}
	return *c.NeckLiftRatio
}

// GetInterpolator returns the interpolator name or the default.
func (c *TuningConfig) GetInterpolator() string {
	if c.Interpolator == nil || *c.Interpolator == "" {
		return "approx-bilinear"
	}
	return strings.ToLower(*c.Interpolator)
}

// GetWatermark returns the capture label. An explicit empty string
// disables the watermark.
func (c *TuningConfig) GetWatermark() string {
	if c.Watermark == nil {
		return "TryMyGold"
	}
	return *c.Watermark
}
