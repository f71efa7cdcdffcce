package feed

import (
	"testing"
	"time"

	"retest-scanner/internal/errors"
	"retest-scanner/internal/models"
)

const chartFixture = `{
  "chart": {
    "result": [
      {
        "timestamp": [1704067200, 1704070800, 1704074400, 1704078000],
        "indicators": {
          "quote": [
            {
              "open":   [100.0, 101.0, null, 102.5],
              "high":   [102.0, 103.5, 104.0, 103.0],
              "low":    [99.5, 100.5, 101.0, 101.5],
              "close":  [101.0, 103.0, 102.5, 102.0],
              "volume": [5000, null, 6000, 4500]
            }
          ]
        }
      }
    ],
    "error": null
  }
}`

func TestParseChartDropsIncompleteBars(t *testing.T) {
	candles, err := parseChart([]byte(chartFixture), "TEST")
	if err != nil {
		t.Fatalf("parseChart() error = %v", err)
	}

	// The third bar has a null open and must be dropped.
	if len(candles) != 3 {
		t.Fatalf("len = %d, want 3", len(candles))
	}

	first := candles[0]
	if !first.Timestamp.Equal(time.Unix(1704067200, 0).UTC()) {
		t.Errorf("timestamp = %v, want %v", first.Timestamp, time.Unix(1704067200, 0).UTC())
	}
	if first.Open != 100.0 || first.High != 102.0 || first.Low != 99.5 || first.Close != 101.0 {
		t.Errorf("unexpected OHLC: %+v", first)
	}
	if first.Volume != 5000 {
		t.Errorf("volume = %d, want 5000", first.Volume)
	}

	// A missing volume alone keeps the bar, with zero volume.
	second := candles[1]
	if second.Close != 103.0 {
		t.Errorf("second close = %v, want 103.0", second.Close)
	}
	if second.Volume != 0 {
		t.Errorf("second volume = %d, want 0", second.Volume)
	}
}

func TestParseChartProviderError(t *testing.T) {
	payload := `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`

	_, err := parseChart([]byte(payload), "NOPE")
	if err == nil {
		t.Fatal("expected error for provider error payload")
	}
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("error %v does not unwrap to ErrDataNotFound", err)
	}

	var dataErr *errors.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error %v is not a DataError", err)
	}
	if dataErr.Symbol != "NOPE" {
		t.Errorf("DataError.Symbol = %q, want NOPE", dataErr.Symbol)
	}
}

func TestParseChartGarbage(t *testing.T) {
	if _, err := parseChart([]byte(`{not json`), "X"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := parseChart([]byte(`{"chart":{"result":[]}}`), "X"); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func mkCandle(ts time.Time, close float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 100}
}

func TestNormalizeSortsAndDedupes(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	candles := []models.Candle{
		mkCandle(base.Add(2*time.Hour), 102),
		mkCandle(base, 100),
		mkCandle(base.Add(time.Hour), 101),
		mkCandle(base.Add(time.Hour), 111), // duplicate timestamp, later value wins
	}

	out := Normalize(candles)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if !out[i-1].Timestamp.Before(out[i].Timestamp) {
			t.Errorf("timestamps not strictly increasing at %d", i)
		}
	}
	if out[1].Close != 111 {
		t.Errorf("duplicate resolution kept %v, want 111", out[1].Close)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if out := Normalize(nil); len(out) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", out)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, mkCandle(base.Add(time.Duration(i)*time.Hour), 100+float64(i)))
	}

	out := Trim(candles, base.Add(2*time.Hour), base.Add(5*time.Hour))
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if !out[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("first = %v, want %v", out[0].Timestamp, base.Add(2*time.Hour))
	}
	if !out[3].Timestamp.Equal(base.Add(5 * time.Hour)) {
		t.Errorf("last = %v, want %v", out[3].Timestamp, base.Add(5*time.Hour))
	}
}
