// Package scan implements the breakout -> retest -> takeoff pattern scanner.
package scan

import (
	"retest-scanner/internal/errors"
)

// Params holds the configuration for one scan. It is a plain value;
// callers build it once and the scanner never modifies it.
type Params struct {
	// Tolerance is the fractional band width around the level that
	// defines the retest zone, e.g. 0.001 for 0.1%.
	Tolerance float64

	// MaxRetestWindow is the number of bars after the breakout in
	// which a retest must occur.
	MaxRetestWindow int

	// TakeoffWindow is the number of bars after the retest in which
	// the takeoff must occur.
	TakeoffWindow int

	// TakeoffPct is the minimum fractional move above the level for
	// the takeoff close, e.g. 0.005 for 0.5%.
	TakeoffPct float64

	// ATREnabled raises the takeoff threshold to
	// level + ATR*ATRMult when that exceeds the percentage threshold.
	ATREnabled bool
	ATRMult    float64
}

// DefaultParams returns the scan defaults used by the CLI.
func DefaultParams() Params {
	return Params{
		Tolerance:       0.001,
		MaxRetestWindow: 20,
		TakeoffWindow:   20,
		TakeoffPct:      0.005,
		ATREnabled:      true,
		ATRMult:         1.0,
	}
}

// Validate checks the parameter ranges. All failures unwrap to
// errors.ErrInvalidInput.
func (p Params) Validate() error {
	if p.Tolerance <= 0 {
		return errors.NewValidationError("tolerance", p.Tolerance, "must be > 0")
	}
	if p.MaxRetestWindow <= 0 {
		return errors.NewValidationError("max_retest_window", p.MaxRetestWindow, "must be > 0")
	}
	if p.TakeoffWindow <= 0 {
		return errors.NewValidationError("takeoff_window", p.TakeoffWindow, "must be > 0")
	}
	if p.TakeoffPct < 0 {
		return errors.NewValidationError("takeoff_pct", p.TakeoffPct, "must be >= 0")
	}
	if p.ATREnabled && p.ATRMult < 0 {
		return errors.NewValidationError("atr_mult", p.ATRMult, "must be >= 0")
	}
	return nil
}
