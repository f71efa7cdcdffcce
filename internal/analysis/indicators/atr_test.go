package indicators

import (
	"math"
	"testing"
	"time"

	"retest-scanner/internal/models"
)

func candle(ts time.Time, open, high, low, close float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

func testCandles() []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Candle{
		candle(base, 100, 102, 99, 101),
		candle(base.Add(1*time.Hour), 101, 104, 100, 103),
		candle(base.Add(2*time.Hour), 103, 105, 101, 102),
		candle(base.Add(3*time.Hour), 102, 103, 98, 99),
		candle(base.Add(4*time.Hour), 99, 101, 97, 100),
	}
}

func TestATRWarmupIsUndefined(t *testing.T) {
	candles := testCandles()

	values, err := NewATR(3).Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if len(values) != len(candles) {
		t.Fatalf("len = %d, want %d", len(values), len(candles))
	}

	for i := 0; i < 2; i++ {
		if !math.IsNaN(values[i]) {
			t.Errorf("warm-up value at %d = %v, want NaN", i, values[i])
		}
	}
	for i := 2; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			t.Errorf("value at %d is NaN, want defined", i)
		}
	}
}

func TestATRRollingMean(t *testing.T) {
	candles := testCandles()

	values, err := NewATR(3).Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	tr := []float64{
		102 - 99,
		math.Max(104-100, math.Max(math.Abs(104-101), math.Abs(100-101))),
		math.Max(105-101, math.Max(math.Abs(105-103), math.Abs(101-103))),
		math.Max(103-98, math.Max(math.Abs(103-102), math.Abs(98-102))),
		math.Max(101-97, math.Max(math.Abs(101-99), math.Abs(97-99))),
	}
	for i := 2; i < len(candles); i++ {
		want := (tr[i-2] + tr[i-1] + tr[i]) / 3
		if math.Abs(values[i]-want) > 1e-12 {
			t.Errorf("ATR[%d] = %v, want %v", i, values[i], want)
		}
	}
}

func TestATRSingleBar(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{candle(base, 100, 105, 98, 103)}

	values, err := NewATR(1).Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	// Period 1 has no warm-up; the single value is high-low.
	if values[0] != 7 {
		t.Errorf("ATR[0] = %v, want 7", values[0])
	}
}

func TestATRInvalidInput(t *testing.T) {
	candles := testCandles()

	if _, err := NewATR(0).Calculate(candles); err != ErrInvalidPeriod {
		t.Errorf("period 0: error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewATR(-1).Calculate(candles); err != ErrInvalidPeriod {
		t.Errorf("period -1: error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := NewATR(14).Calculate(nil); err != ErrEmptySeries {
		t.Errorf("empty series: error = %v, want ErrEmptySeries", err)
	}
}

func TestATRShortSeriesIsAllUndefined(t *testing.T) {
	candles := testCandles()[:2]

	values, err := NewATR(14).Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	for i, v := range values {
		if !math.IsNaN(v) {
			t.Errorf("value at %d = %v, want NaN for short series", i, v)
		}
	}
}

func TestATRName(t *testing.T) {
	a := NewATR(14)
	if a.Name() != "ATR_14" {
		t.Errorf("Name() = %q, want ATR_14", a.Name())
	}
	if a.Period() != 14 {
		t.Errorf("Period() = %d, want 14", a.Period())
	}
}
