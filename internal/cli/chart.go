package cli

import (
	"context"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"retest-scanner/internal/analysis/indicators"
	"retest-scanner/internal/models"
	"retest-scanner/internal/scan"
)

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <symbol>",
		Short: "Render the close series and level to a PNG",
		Long: `Render the close series of a symbol with a horizontal line at the
key level. With --invert the drawn series is the flipped one, the
same view the scanner sees.`,
		Example: `  retest chart BTC-USD --level 60000 --out btc.png
  retest chart BTC-USD --level 60000 --invert mirror --out btc_inverted.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			level, _ := cmd.Flags().GetFloat64("level")
			outFile, _ := cmd.Flags().GetString("out")
			invertMode, _ := cmd.Flags().GetString("invert")

			rng, _ := cmd.Flags().GetString("range")
			if rng == "" {
				rng = app.Config.Feed.DefaultRange
			}
			interval, _ := cmd.Flags().GetString("interval")
			if interval == "" {
				interval = app.Config.Feed.DefaultInterval
			}

			candles, err := app.fetchCandles(ctx, symbol, rng, models.Interval(interval))
			if err != nil {
				output.Error("Failed to fetch data: %v", err)
				return err
			}
			if len(candles) == 0 {
				output.Warning("No data for %s", symbol)
				return nil
			}

			if invertMode != "" {
				mode, err := scan.ParseInvertMode(invertMode)
				if err != nil {
					output.Error("%v", err)
					return err
				}
				inv, err := scan.NewInversion(candles, mode)
				if err != nil {
					output.Error("%v", err)
					return err
				}
				level = inv.Price(level)
				candles = inv.Apply(candles)
			}

			var atr []float64
			if withATR, _ := cmd.Flags().GetBool("atr"); withATR {
				atr, err = indicators.NewATR(app.Config.Scan.ATRPeriod).Calculate(candles)
				if err != nil {
					output.Error("Failed to calculate ATR: %v", err)
					return err
				}
			}

			graph := buildChart(symbol, candles, level, atr)

			file, err := os.Create(outFile)
			if err != nil {
				output.Error("Failed to create file: %v", err)
				return err
			}
			defer file.Close()

			if err := graph.Render(chart.PNG, file); err != nil {
				output.Error("Failed to render chart: %v", err)
				return err
			}

			output.Success("✓ Chart written to %s", outFile)
			return nil
		},
	}

	cmd.Flags().Float64("level", 0, "key price level to draw")
	cmd.MarkFlagRequired("level")
	cmd.Flags().String("out", "chart.png", "output PNG path")
	cmd.Flags().String("range", "", "data range (7d, 1mo, 3mo, 6mo, 1y, 2y, 5y, max)")
	cmd.Flags().String("interval", "", "bar interval (5m, 15m, 30m, 60m, 1d)")
	cmd.Flags().String("invert", "", "invert the series before drawing (mirror, negate)")
	cmd.Flags().Bool("atr", false, "overlay the ATR on a secondary axis")

	return cmd
}

// buildChart assembles the close series, a dashed level line, and an
// optional ATR overlay on the secondary axis. The chart has no idea
// whether the series was inverted upstream.
func buildChart(symbol string, candles []models.Candle, level float64, atr []float64) chart.Chart {
	times := make([]time.Time, len(candles))
	closes := make([]float64, len(candles))
	levels := make([]float64, len(candles))
	for i, c := range candles {
		times[i] = c.Timestamp
		closes[i] = c.Close
		levels[i] = level
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "close",
			XValues: times,
			YValues: closes,
			Style: chart.Style{
				StrokeColor: chart.ColorBlue,
				StrokeWidth: 1.5,
			},
		},
		chart.TimeSeries{
			Name:    "level",
			XValues: times,
			YValues: levels,
			Style: chart.Style{
				StrokeColor:     drawing.ColorRed,
				StrokeWidth:     1.0,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		},
	}

	if len(atr) == len(candles) {
		// go-chart cannot plot NaN, so the warm-up bars are cut.
		var atrTimes []time.Time
		var atrValues []float64
		for i, v := range atr {
			if math.IsNaN(v) {
				continue
			}
			atrTimes = append(atrTimes, candles[i].Timestamp)
			atrValues = append(atrValues, v)
		}
		if len(atrValues) > 1 {
			series = append(series, chart.TimeSeries{
				Name:    "atr",
				YAxis:   chart.YAxisSecondary,
				XValues: atrTimes,
				YValues: atrValues,
				Style: chart.Style{
					StrokeColor: chart.ColorAlternateGreen,
					StrokeWidth: 1.0,
				},
			})
		}
	}

	return chart.Chart{
		Title:  symbol,
		Width:  1280,
		Height: 640,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		Series: series,
	}
}
