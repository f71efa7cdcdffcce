package scan

import (
	"math"

	"retest-scanner/internal/errors"
	"retest-scanner/internal/models"
)

// scanState is the phase the scanner is in for the current candidate.
type scanState int

const (
	seekingBreakout scanState = iota
	seekingRetest
	seekingTakeoff
)

// Scan runs the three-phase pattern scan over candles and returns the
// completed signals ordered by takeoff index.
//
// The scan is a single forward pass holding at most one candidate at a
// time. A breakout is a close crossing from at-or-below the level to
// above it. The retest must print a low inside the tolerance band
// around the level while still closing above it, within MaxRetestWindow
// bars of the breakout. The takeoff must close strictly above
// max(level*(1+TakeoffPct), level + ATR*ATRMult) within TakeoffWindow
// bars of the retest; the ATR branch is dropped when the filter is
// disabled or the ATR value is undefined at that bar.
//
// When a candidate's retest or takeoff deadline passes, the scan
// resumes from the bar after that candidate's breakout, so crossings
// inside the abandoned window are re-evaluated. After a completed
// signal the scan resumes from the bar after the takeoff, so signals
// never overlap.
//
// atr must be aligned with candles when p.ATREnabled; pass nil
// otherwise. Undefined ATR positions are NaN. Scan is a pure function
// of its inputs and is safe for concurrent use on independent inputs.
func Scan(candles []models.Candle, level float64, p Params, atr []float64) ([]models.Signal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(candles) < 2 {
		return nil, errors.NewValidationError("series", len(candles), "need at least 2 bars")
	}
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return nil, errors.NewValidationError("level", level, "must be finite")
	}
	if p.ATREnabled && len(atr) != len(candles) {
		return nil, errors.NewValidationError("atr", len(atr), "must align with series when ATR filter is enabled")
	}

	n := len(candles)
	tolUp := level * (1 + p.Tolerance)
	tolDn := level * (1 - p.Tolerance)
	if tolUp < tolDn {
		// Negative levels (negate-inverted series) flip the band.
		tolUp, tolDn = tolDn, tolUp
	}

	var signals []models.Signal
	state := seekingBreakout
	var breakoutIdx, retestIdx int
	var retestLow float64
	var retestDeadline, takeoffDeadline int

	for i := 1; i < n; i++ {
		switch state {
		case seekingBreakout:
			prev, cur := candles[i-1].Close, candles[i].Close
			if math.IsNaN(prev) || math.IsNaN(cur) {
				continue
			}
			if cur > level && prev <= level {
				breakoutIdx = i
				retestDeadline = i + p.MaxRetestWindow
				state = seekingRetest
			}

		case seekingRetest:
			if i > retestDeadline {
				// Abandon: resume from the bar after the breakout.
				state = seekingBreakout
				i = breakoutIdx
				continue
			}
			lo, cl := candles[i].Low, candles[i].Close
			if math.IsNaN(lo) || math.IsNaN(cl) {
				continue
			}
			if lo >= tolDn && lo <= tolUp && cl > level {
				retestIdx = i
				retestLow = lo
				takeoffDeadline = i + p.TakeoffWindow
				state = seekingTakeoff
			}

		case seekingTakeoff:
			if i > takeoffDeadline {
				state = seekingBreakout
				i = breakoutIdx
				continue
			}
			cl := candles[i].Close
			if math.IsNaN(cl) {
				continue
			}
			threshold := level * (1 + p.TakeoffPct)
			if p.ATREnabled && !math.IsNaN(atr[i]) {
				if t := level + atr[i]*p.ATRMult; t > threshold {
					threshold = t
				}
			}
			if cl > threshold {
				signals = append(signals, newSignal(candles, level, breakoutIdx, retestIdx, i, retestLow, atr))
				state = seekingBreakout
			}
		}
	}

	return signals, nil
}

func newSignal(candles []models.Candle, level float64, breakoutIdx, retestIdx, takeoffIdx int, retestLow float64, atr []float64) models.Signal {
	atrAtTakeoff := math.NaN()
	if len(atr) == len(candles) {
		atrAtTakeoff = atr[takeoffIdx]
	}
	takeoffClose := candles[takeoffIdx].Close
	return models.Signal{
		BreakoutIndex:   breakoutIdx,
		BreakoutTime:    candles[breakoutIdx].Timestamp,
		RetestIndex:     retestIdx,
		RetestTime:      candles[retestIdx].Timestamp,
		TakeoffIndex:    takeoffIdx,
		TakeoffTime:     candles[takeoffIdx].Timestamp,
		Level:           level,
		RetestLow:       retestLow,
		TakeoffClose:    takeoffClose,
		ReturnFromLevel: takeoffClose/level - 1,
		BarsToRetest:    retestIdx - breakoutIdx,
		BarsToTakeoff:   takeoffIdx - retestIdx,
		ATRAtTakeoff:    atrAtTakeoff,
	}
}
