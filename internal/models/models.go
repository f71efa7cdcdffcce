// Package models provides domain models for the scanner application.
package models

import (
	"math"
	"time"
)

// Interval represents a bar interval supported by the data provider.
type Interval string

const (
	Interval5Min   Interval = "5m"
	Interval15Min  Interval = "15m"
	Interval30Min  Interval = "30m"
	Interval60Min  Interval = "60m"
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1wk"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Valid reports whether all four prices are finite and the high/low
// bracket the body. Candles failing this are skipped by the scanner.
func (c Candle) Valid() bool {
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return c.High >= c.Open && c.High >= c.Close && c.High >= c.Low &&
		c.Low <= c.Open && c.Low <= c.Close
}

// Signal is one completed breakout -> retest -> takeoff sequence.
// Signals are immutable once emitted; the scanner never touches one
// after appending it to the result set.
type Signal struct {
	Symbol        string    `json:"symbol,omitempty"`
	BreakoutIndex int       `json:"breakout_index"`
	BreakoutTime  time.Time `json:"breakout_time"`
	RetestIndex   int       `json:"retest_index"`
	RetestTime    time.Time `json:"retest_time"`
	TakeoffIndex  int       `json:"takeoff_index"`
	TakeoffTime   time.Time `json:"takeoff_time"`
	Level         float64   `json:"level"`
	RetestLow     float64   `json:"retest_low"`
	TakeoffClose  float64   `json:"takeoff_close"`

	// ReturnFromLevel is takeoff_close/level - 1, as a fraction.
	ReturnFromLevel float64 `json:"return_from_level"`

	BarsToRetest  int `json:"bars_to_retest"`
	BarsToTakeoff int `json:"bars_to_takeoff"`

	// ATRAtTakeoff is NaN when the ATR filter was disabled or the
	// value was undefined at the takeoff bar.
	ATRAtTakeoff float64 `json:"atr_at_takeoff"`
}

// ScanRun records one scanner invocation for the history store.
type ScanRun struct {
	ID          int64
	Symbol      string
	Interval    Interval
	Level       float64
	RunAt       time.Time
	Inverted    string // "", "mirror" or "negate"
	SignalCount int
}
