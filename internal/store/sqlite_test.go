package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"retest-scanner/internal/errors"
	"retest-scanner/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCandles(n int) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		c := 100 + float64(i)
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume: int64(1000 + i),
		}
	}
	return candles
}

func TestCandleCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	candles := testCandles(5)

	if err := s.SaveCandles(ctx, "BTC-USD", models.IntervalDaily, candles); err != nil {
		t.Fatalf("SaveCandles() error = %v", err)
	}

	got, err := s.GetCandles(ctx, "BTC-USD", models.IntervalDaily, time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	if len(got) != len(candles) {
		t.Fatalf("len = %d, want %d", len(got), len(candles))
	}
	for i := range got {
		if !got[i].Timestamp.Equal(candles[i].Timestamp) || got[i].Close != candles[i].Close {
			t.Errorf("candle %d = %+v, want %+v", i, got[i], candles[i])
		}
	}

	// Upsert does not duplicate
	if err := s.SaveCandles(ctx, "BTC-USD", models.IntervalDaily, candles); err != nil {
		t.Fatalf("SaveCandles() second call error = %v", err)
	}
	got, err = s.GetCandles(ctx, "BTC-USD", models.IntervalDaily, time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	if len(got) != len(candles) {
		t.Errorf("after upsert len = %d, want %d", len(got), len(candles))
	}
}

func TestCandlesFreshness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetCandlesFreshness(ctx, "NONE", models.IntervalDaily); !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("freshness on empty cache: error = %v, want ErrDataNotFound", err)
	}

	candles := testCandles(3)
	if err := s.SaveCandles(ctx, "BTC-USD", models.IntervalDaily, candles); err != nil {
		t.Fatalf("SaveCandles() error = %v", err)
	}
	ts, err := s.GetCandlesFreshness(ctx, "BTC-USD", models.IntervalDaily)
	if err != nil {
		t.Fatalf("GetCandlesFreshness() error = %v", err)
	}
	if !ts.Equal(candles[2].Timestamp) {
		t.Errorf("freshness = %v, want %v", ts, candles[2].Timestamp)
	}
}

func TestScanRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	signals := []models.Signal{
		{
			Symbol:          "BTC-USD",
			BreakoutIndex:   1, BreakoutTime: base.Add(1 * time.Hour),
			RetestIndex:     3, RetestTime: base.Add(3 * time.Hour),
			TakeoffIndex:    4, TakeoffTime: base.Add(4 * time.Hour),
			Level:           100, RetestLow: 99.5, TakeoffClose: 103.5,
			ReturnFromLevel: 0.035,
			ATRAtTakeoff:    2.5,
		},
		{
			Symbol:          "BTC-USD",
			BreakoutIndex:   7, BreakoutTime: base.Add(7 * time.Hour),
			RetestIndex:     8, RetestTime: base.Add(8 * time.Hour),
			TakeoffIndex:    10, TakeoffTime: base.Add(10 * time.Hour),
			Level:           100, RetestLow: 100.2, TakeoffClose: 106,
			ReturnFromLevel: 0.06,
			ATRAtTakeoff:    math.NaN(),
		},
	}

	run := &models.ScanRun{
		Symbol:   "BTC-USD",
		Interval: models.IntervalDaily,
		Level:    100,
		RunAt:    time.Now(),
	}
	runID, err := s.SaveScanRun(ctx, run, signals)
	if err != nil {
		t.Fatalf("SaveScanRun() error = %v", err)
	}

	got, err := s.GetSignals(ctx, runID)
	if err != nil {
		t.Fatalf("GetSignals() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].BreakoutIndex != 1 || got[0].RetestIndex != 3 || got[0].TakeoffIndex != 4 {
		t.Errorf("first signal indices = %+v", got[0])
	}
	if got[0].ATRAtTakeoff != 2.5 {
		t.Errorf("ATRAtTakeoff = %v, want 2.5", got[0].ATRAtTakeoff)
	}
	if !math.IsNaN(got[1].ATRAtTakeoff) {
		t.Errorf("second ATRAtTakeoff = %v, want NaN", got[1].ATRAtTakeoff)
	}
	if got[0].BarsToRetest != 2 || got[0].BarsToTakeoff != 1 {
		t.Errorf("bars = (%d, %d), want (2, 1)", got[0].BarsToRetest, got[0].BarsToTakeoff)
	}

	latest, err := s.GetLatestSignals(ctx, "BTC-USD")
	if err != nil {
		t.Fatalf("GetLatestSignals() error = %v", err)
	}
	if len(latest) != 2 {
		t.Errorf("latest len = %d, want 2", len(latest))
	}

	runs, err := s.GetScanRuns(ctx, "BTC-USD", 10)
	if err != nil {
		t.Fatalf("GetScanRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].SignalCount != 2 {
		t.Errorf("runs = %+v, want one run with 2 signals", runs)
	}
}

func TestGetLatestSignalsNoRuns(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLatestSignals(context.Background(), "NONE")
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
}
