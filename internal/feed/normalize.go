package feed

import (
	"sort"
	"time"

	"retest-scanner/internal/models"
)

// Normalize sorts candles by timestamp and drops duplicates, keeping
// the last bar seen for each timestamp. The scanner assumes ordered,
// unique timestamps; every series leaving this package has been
// through here.
func Normalize(candles []models.Candle) []models.Candle {
	if len(candles) == 0 {
		return candles
	}

	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:1]
	for _, c := range sorted[1:] {
		if c.Timestamp.Equal(out[len(out)-1].Timestamp) {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// Trim returns the candles within [from, to], assuming a normalized
// series.
func Trim(candles []models.Candle, from, to time.Time) []models.Candle {
	lo := sort.Search(len(candles), func(i int) bool {
		return !candles[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(candles), func(i int) bool {
		return candles[i].Timestamp.After(to)
	})
	return candles[lo:hi]
}
