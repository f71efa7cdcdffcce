package scan

import (
	"sort"

	"retest-scanner/internal/errors"
	"retest-scanner/internal/models"
)

// InvertMode selects how a price series is flipped.
type InvertMode string

const (
	// InvertNegate multiplies every price by -1. Prices go negative.
	InvertNegate InvertMode = "negate"

	// InvertMirror reflects every price around the median close of
	// the whole series. Values stay positive only while all original
	// prices are at most twice the median; callers must not assume
	// positivity in general.
	InvertMirror InvertMode = "mirror"
)

// ParseInvertMode validates a user-supplied mode string.
func ParseInvertMode(s string) (InvertMode, error) {
	switch InvertMode(s) {
	case InvertNegate, InvertMirror:
		return InvertMode(s), nil
	default:
		return "", errors.NewValidationError("invert", s, "must be \"mirror\" or \"negate\"")
	}
}

// Inversion flips a price series so downtrends present as uptrends.
// The mirror pivot (median close) is computed once from the series
// given to NewInversion, so applying the same Inversion to the series
// and to the level keeps them consistent. The scanner itself never
// transforms the level; callers that invert the series must invert
// the level through the same Inversion or the detected signals are
// meaningless.
type Inversion struct {
	mode   InvertMode
	median float64
}

// NewInversion builds an inversion for the given series. Mirror mode
// fails on an empty series because the median is undefined.
func NewInversion(candles []models.Candle, mode InvertMode) (*Inversion, error) {
	inv := &Inversion{mode: mode}
	if mode == InvertMirror {
		if len(candles) == 0 {
			return nil, errors.NewValidationError("series", 0, "mirror inversion needs a non-empty series")
		}
		inv.median = medianClose(candles)
	}
	return inv, nil
}

// Mode returns the inversion mode.
func (v *Inversion) Mode() InvertMode {
	return v.mode
}

// Apply returns a new series with every price flipped. Timestamps and
// volume are preserved; high and low swap roles so high >= low still
// holds.
func (v *Inversion) Apply(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, len(candles))
	for i, c := range candles {
		out[i] = models.Candle{
			Timestamp: c.Timestamp,
			Open:      v.Price(c.Open),
			High:      v.Price(c.Low),
			Low:       v.Price(c.High),
			Close:     v.Price(c.Close),
			Volume:    c.Volume,
		}
	}
	return out
}

// Price flips a single price. Use this for the level too.
func (v *Inversion) Price(p float64) float64 {
	if v.mode == InvertNegate {
		return -p
	}
	return 2*v.median - p
}

// medianClose returns the median of all close prices.
func medianClose(candles []models.Candle) float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	sort.Float64s(closes)
	n := len(closes)
	if n%2 == 1 {
		return closes[n/2]
	}
	return (closes[n/2-1] + closes[n/2]) / 2
}
