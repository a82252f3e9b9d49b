// Package pdc computes power-duration curves: for each window duration,
// the best aggregate power a recording sustained over any window of that
// duration.
package pdc

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/summavi/summavi/internal/settings"
	"github.com/summavi/summavi/pkg/types"
	"github.com/summavi/summavi/pkg/window"
)

// SettingsGroup is the settings document group holding curve parameters.
const SettingsGroup = "Power Duration Curve"

// Config holds the curve parameters, built once from a settings group and
// validated before use.
type Config struct {
	// TimeGranularity is the sliding step within one duration [s].
	TimeGranularity float64
	// MinWindowDuration is the shortest duration on the curve [s].
	MinWindowDuration float64
	// WindowDurationStep is the spacing between curve durations [s].
	WindowDurationStep float64
}

// DefaultConfig returns the curve parameters shipped with the binary.
func DefaultConfig() Config {
	return Config{
		TimeGranularity:    1,
		MinWindowDuration:  10,
		WindowDurationStep: 60,
	}
}

// Validate validates the curve parameters.
func (c Config) Validate() error {
	if c.TimeGranularity <= 0 {
		return fmt.Errorf("time granularity must be positive, got %v", c.TimeGranularity)
	}
	if c.MinWindowDuration <= 0 {
		return fmt.Errorf("minimum window duration must be positive, got %v", c.MinWindowDuration)
	}
	if c.WindowDurationStep <= 0 {
		return fmt.Errorf("window duration step must be positive, got %v", c.WindowDurationStep)
	}
	return nil
}

// ConfigFromGroup builds a validated Config from a settings group.
func ConfigFromGroup(g settings.Group) (Config, error) {
	var cfg Config
	var err error

	if cfg.TimeGranularity, err = g.Float("TIME_GRANULARITY"); err != nil {
		return Config{}, err
	}
	if cfg.MinWindowDuration, err = g.Float("MIN_WINDOW_DURATION"); err != nil {
		return Config{}, err
	}
	if cfg.WindowDurationStep, err = g.Float("WINDOW_DURATION_STEP"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Point is one entry of a power-duration curve.
type Point struct {
	// Duration of the window [s].
	Duration float64 `json:"duration"`
	// Power is the best aggregate power over any window of Duration [W].
	Power float64 `json:"power"`
}

// Curve is a power-duration curve, ascending by duration.
type Curve []Point

// Compute sweeps window durations from the configured minimum up to the
// series span and keeps, per duration, the best mean power over all
// windows of that duration. Windows whose aggregation failed are skipped,
// not fatal.
func Compute(series types.TimeSeries, cfg Config) (Curve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	span := series.Span()
	var curve Curve
	for d := cfg.MinWindowDuration; d <= span; d += cfg.WindowDurationStep {
		spec := window.Spec{Length: d, Step: cfg.TimeGranularity}
		it, err := window.AdvanceValues(series, spec, Mean)
		if err != nil {
			return nil, err
		}

		best := math.Inf(-1)
		found := false
		for it.Next() {
			w := it.Window()
			if w.Result.Failed() {
				continue
			}
			if w.Result.Value > best {
				best = w.Result.Value
				found = true
			}
		}
		if found {
			curve = append(curve, Point{Duration: d, Power: best})
		}
	}

	if len(curve) == 0 {
		return nil, fmt.Errorf("series spans %.1fs, shorter than the minimum window duration %.1fs",
			span, cfg.MinWindowDuration)
	}
	return curve, nil
}

// Mean averages the window content.
func Mean(values []float64) (float64, error) {
	return stats.Mean(values)
}

// Aggregator maps a name to a window aggregation function. The names are
// the ones the CLI and HTTP surfaces accept.
func Aggregator(name string) (window.ValueFunc[float64], error) {
	switch name {
	case "mean", "":
		return Mean, nil
	case "sum":
		return func(values []float64) (float64, error) { return stats.Sum(values) }, nil
	case "max":
		return func(values []float64) (float64, error) { return stats.Max(values) }, nil
	case "min":
		return func(values []float64) (float64, error) { return stats.Min(values) }, nil
	case "median":
		return func(values []float64) (float64, error) { return stats.Median(values) }, nil
	default:
		return nil, fmt.Errorf("unknown aggregator %q", name)
	}
}
