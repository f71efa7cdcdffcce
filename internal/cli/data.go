package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retest-scanner/internal/models"
)

// fetchCandles fetches bars from the provider, caching them on
// success. When the provider is unreachable it falls back to the
// local cache so previously fetched data stays scannable offline.
func (app *App) fetchCandles(ctx context.Context, symbol, rng string, interval models.Interval) ([]models.Candle, error) {
	candles, err := app.Feed.Fetch(ctx, symbol, rng, interval)
	if err == nil {
		if app.Store != nil {
			if saveErr := app.Store.SaveCandles(ctx, symbol, interval, candles); saveErr != nil {
				app.Logger.Warn().Err(saveErr).Msg("Failed to cache candles")
			}
		}
		return candles, nil
	}

	if app.Store == nil {
		return nil, err
	}
	app.Logger.Warn().Err(err).Str("symbol", symbol).Msg("Fetch failed, trying local cache")

	cached, cacheErr := app.Store.GetCandles(ctx, symbol, interval, time.Time{}, time.Now())
	if cacheErr != nil || len(cached) == 0 {
		return nil, err
	}
	return cached, nil
}

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data <symbol>",
		Short: "Fetch and display historical OHLCV data",
		Long: `Fetch historical OHLCV bars for a symbol from the data provider.

Bars are cached locally so scans can run against previously fetched
data when the provider is unavailable.`,
		Example: `  retest data BTC-USD
  retest data ^IXIC --range 3mo --interval 60m
  retest data NQ=F --tail 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			rng, _ := cmd.Flags().GetString("range")
			if rng == "" {
				rng = app.Config.Feed.DefaultRange
			}
			interval, _ := cmd.Flags().GetString("interval")
			if interval == "" {
				interval = app.Config.Feed.DefaultInterval
			}
			tail, _ := cmd.Flags().GetInt("tail")

			candles, err := app.fetchCandles(ctx, symbol, rng, models.Interval(interval))
			if err != nil {
				output.Error("Failed to fetch data: %v", err)
				return err
			}

			if tail > 0 && tail < len(candles) {
				candles = candles[len(candles)-tail:]
			}

			if output.IsJSON() {
				return output.JSON(candles)
			}

			output.Bold("%s (%s, %s) — %d bars", symbol, rng, interval, len(candles))
			output.Printf("  %-20s %10s %10s %10s %10s %12s\n",
				"TIMESTAMP", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
			for _, c := range candles {
				output.Printf("  %-20s %10.4f %10.4f %10.4f %10.4f %12d\n",
					c.Timestamp.Format("2006-01-02 15:04"),
					c.Open, c.High, c.Low, c.Close, c.Volume)
			}
			return nil
		},
	}

	cmd.Flags().String("range", "", "data range (7d, 1mo, 3mo, 6mo, 1y, 2y, 5y, max)")
	cmd.Flags().String("interval", "", "bar interval (5m, 15m, 30m, 60m, 1d)")
	cmd.Flags().Int("tail", 0, "only show the last N bars")

	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [symbol]",
		Short: "List past scan runs",
		Example: `  retest history
  retest history BTC-USD --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Scan history store is not available.")
				return nil
			}

			symbol := ""
			if len(args) == 1 {
				symbol = strings.ToUpper(args[0])
			}
			limit, _ := cmd.Flags().GetInt("limit")

			runs, err := app.Store.GetScanRuns(ctx, symbol, limit)
			if err != nil {
				output.Error("Failed to load scan history: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}

			if len(runs) == 0 {
				output.Info("No scan runs recorded yet.")
				return nil
			}

			output.Printf("  %-6s %-12s %-9s %12s %-20s %-8s %8s\n",
				"ID", "SYMBOL", "INTERVAL", "LEVEL", "RUN AT", "INVERT", "SIGNALS")
			for _, r := range runs {
				inverted := r.Inverted
				if inverted == "" {
					inverted = "-"
				}
				output.Printf("  %-6d %-12s %-9s %12.4f %-20s %-8s %8d\n",
					r.ID, r.Symbol, r.Interval, r.Level,
					r.RunAt.Format("2006-01-02 15:04"), inverted, r.SignalCount)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "max runs to list")

	return cmd
}
