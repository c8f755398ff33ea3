package pipeline

import (
	"fmt"

	"golang.org/x/image/draw"

	"github.com/banshee-data/tryon/internal/config"
	"github.com/banshee-data/tryon/internal/tryon/compose"
	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

// Config holds the per-session tuning.
type Config struct {
	SmoothingAlpha float64
	AnchorAlpha    float64
	Layout         compose.Layout
	// Interpolator is applied to sessions that own their ImageSurface.
	Interpolator draw.Interpolator
	Watermark    string
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		SmoothingAlpha: landmarks.DefaultAlpha,
		AnchorAlpha:    landmarks.DefaultAlpha,
		Layout:         compose.DefaultLayout(),
		Interpolator:   draw.ApproxBiLinear,
		Watermark:      compose.DefaultWatermark,
	}
}

// ConfigFromTuning maps a tuning file onto a session Config.
func ConfigFromTuning(t *config.TuningConfig) (Config, error) {
	if t == nil {
		return DefaultConfig(), nil
	}
	if err := t.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid tuning: %w", err)
	}
	interp, err := compose.InterpolatorByName(t.GetInterpolator())
	if err != nil {
		return Config{}, err
	}
	return Config{
		SmoothingAlpha: t.GetSmoothingAlpha(),
		AnchorAlpha:    t.GetAnchorAlpha(),
		Layout: compose.Layout{
			EarWidthRatio:  t.GetEarWidthRatio(),
			EarLiftRatio:   t.GetEarLiftRatio(),
			NeckWidthRatio: t.GetNeckWidthRatio(),
			NeckLiftRatio:  t.GetNeckLiftRatio(),
		},
		Interpolator: interp,
		Watermark:    t.GetWatermark(),
	}, nil
}
