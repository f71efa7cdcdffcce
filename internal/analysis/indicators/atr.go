// Package indicators provides the derived series the scanner consumes.
package indicators

import (
	"fmt"
	"math"

	"retest-scanner/internal/models"
)

// DefaultATRPeriod is the lookback used when the caller does not pick one.
const DefaultATRPeriod = 14

// ATR calculates the Average True Range.
//
// Smoothing is a simple rolling mean of true range over the trailing
// N bars. Positions with fewer than N-1 prior bars are NaN; downstream
// threshold logic treats NaN as "filter unavailable" rather than zero,
// so the warm-up must stay undefined.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}

	n := len(candles)
	tr := make([]float64, n)

	// First TR is just high - low
	tr[0] = candles[0].High - candles[0].Low

	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	result := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < a.period-1 {
			result[i] = math.NaN()
			continue
		}
		result[i] = mean(tr[i-a.period+1 : i+1])
	}

	return result, nil
}
