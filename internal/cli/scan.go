package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retest-scanner/internal/analysis/indicators"
	"retest-scanner/internal/logging"
	"retest-scanner/internal/models"
	"retest-scanner/internal/scan"
)

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <symbol>",
		Short: "Scan a symbol for breakout/retest/takeoff signals",
		Long: `Fetch historical bars for a symbol and scan them for the three
phase pattern around a key price level.

With --invert the series is flipped (mirror or negate) before the
scan, and the level is flipped with it, so downside patterns can be
detected with the same engine.`,
		Example: `  retest scan BTC-USD --level 60000
  retest scan ^IXIC --level 14000 --range 6mo --interval 60m
  retest scan NQ=F --level 15000 --tolerance 0.002 --no-atr
  retest scan BTC-USD --level 60000 --invert mirror`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			level, _ := cmd.Flags().GetFloat64("level")
			invertMode, _ := cmd.Flags().GetString("invert")
			noSave, _ := cmd.Flags().GetBool("no-save")

			rng, _ := cmd.Flags().GetString("range")
			if rng == "" {
				rng = app.Config.Feed.DefaultRange
			}
			interval, _ := cmd.Flags().GetString("interval")
			if interval == "" {
				interval = app.Config.Feed.DefaultInterval
			}

			params, err := paramsFromFlags(cmd, app)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			candles, err := app.fetchCandles(ctx, symbol, rng, models.Interval(interval))
			if err != nil {
				output.Error("Failed to fetch data: %v", err)
				return err
			}
			if len(candles) < 2 {
				output.Warning("Not enough data for %s (%d bars)", symbol, len(candles))
				return fmt.Errorf("not enough data")
			}

			scanLevel := level
			inverted := ""
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
				candles = inv.Apply(candles)
				scanLevel = inv.Price(level)
				inverted = string(mode)
				app.Logger.Debug().
					Str("mode", inverted).
					Float64("level", level).
					Float64("inverted_level", scanLevel).
					Msg("Series inverted")
			}

			var atr []float64
			if params.ATREnabled {
				atrPeriod := app.Config.Scan.ATRPeriod
				if cmd.Flags().Changed("atr-period") {
					atrPeriod, _ = cmd.Flags().GetInt("atr-period")
				}
				atr, err = indicators.NewATR(atrPeriod).Calculate(candles)
				if err != nil {
					output.Error("Failed to calculate ATR: %v", err)
					return err
				}
			}

			signals, err := scan.Scan(candles, scanLevel, params, atr)
			if err != nil {
				output.Error("Scan failed: %v", err)
				return err
			}
			for i := range signals {
				signals[i].Symbol = symbol
			}

			logging.LogScan(app.Logger, symbol, scanLevel, len(candles), len(signals))

			if app.Store != nil && !noSave {
				run := &models.ScanRun{
					Symbol:   symbol,
					Interval: models.Interval(interval),
					Level:    scanLevel,
					RunAt:    time.Now(),
					Inverted: inverted,
				}
				if _, err := app.Store.SaveScanRun(ctx, run, signals); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to persist scan run")
				}
			}

			if output.IsJSON() {
				return output.JSON(signals)
			}
			displaySignals(output, symbol, scanLevel, params, signals)
			return nil
		},
	}

	cmd.Flags().Float64("level", 0, "key price level to scan around (required)")
	cmd.MarkFlagRequired("level")
	cmd.Flags().String("range", "", "data range (7d, 1mo, 3mo, 6mo, 1y, 2y, 5y, max)")
	cmd.Flags().String("interval", "", "bar interval (5m, 15m, 30m, 60m, 1d)")
	cmd.Flags().Float64("tolerance", 0, "retest tolerance as a fraction, e.g. 0.001")
	cmd.Flags().Int("retest-window", 0, "max bars to find the retest")
	cmd.Flags().Int("takeoff-window", 0, "max bars to confirm the takeoff")
	cmd.Flags().Float64("takeoff-pct", 0, "min takeoff above level as a fraction, e.g. 0.005")
	cmd.Flags().Bool("no-atr", false, "disable the ATR thrust filter")
	cmd.Flags().Float64("atr-mult", 0, "ATR multiplier for the takeoff threshold")
	cmd.Flags().Int("atr-period", 0, "ATR lookback period")
	cmd.Flags().String("invert", "", "invert the series before scanning (mirror, negate)")
	cmd.Flags().Bool("no-save", false, "do not persist the scan run")

	return cmd
}

// paramsFromFlags merges config defaults with explicit flags.
func paramsFromFlags(cmd *cobra.Command, app *App) (scan.Params, error) {
	sc := app.Config.Scan
	params := scan.Params{
		Tolerance:       sc.Tolerance,
		MaxRetestWindow: sc.MaxRetestWindow,
		TakeoffWindow:   sc.TakeoffWindow,
		TakeoffPct:      sc.TakeoffPct,
		ATREnabled:      sc.ATREnabled,
		ATRMult:         sc.ATRMult,
	}

	// Changed, not value guards: an explicit zero (e.g. --atr-mult 0)
	// must override the config default.
	if cmd.Flags().Changed("tolerance") {
		params.Tolerance, _ = cmd.Flags().GetFloat64("tolerance")
	}
	if cmd.Flags().Changed("retest-window") {
		params.MaxRetestWindow, _ = cmd.Flags().GetInt("retest-window")
	}
	if cmd.Flags().Changed("takeoff-window") {
		params.TakeoffWindow, _ = cmd.Flags().GetInt("takeoff-window")
	}
	if cmd.Flags().Changed("takeoff-pct") {
		params.TakeoffPct, _ = cmd.Flags().GetFloat64("takeoff-pct")
	}
	if noATR, _ := cmd.Flags().GetBool("no-atr"); noATR {
		params.ATREnabled = false
	}
	if cmd.Flags().Changed("atr-mult") {
		params.ATRMult, _ = cmd.Flags().GetFloat64("atr-mult")
	}

	return params, params.Validate()
}

func displaySignals(output *Output, symbol string, level float64, params scan.Params, signals []models.Signal) {
	output.Bold("%s — level %.4f", symbol, level)
	output.Dim("  tolerance ±%.2f%%  takeoff ≥ %.2f%%  ATR filter %s",
		params.Tolerance*100, params.TakeoffPct*100, onOff(params.ATREnabled))
	output.Println()

	if len(signals) == 0 {
		output.Info("No breakout/retest/takeoff sequences found with the current settings.")
		return
	}

	output.Printf("  %-20s %-20s %-20s %10s %10s\n",
		"BREAKOUT", "RETEST", "TAKEOFF", "CLOSE", "RETURN")
	for _, s := range signals {
		output.Printf("  %-20s %-20s %-20s %10.4f %9.2f%%\n",
			s.BreakoutTime.Format("2006-01-02 15:04"),
			s.RetestTime.Format("2006-01-02 15:04"),
			s.TakeoffTime.Format("2006-01-02 15:04"),
			s.TakeoffClose,
			s.ReturnFromLevel*100)
		if !math.IsNaN(s.ATRAtTakeoff) {
			output.Dim("    bars to retest: %d, bars to takeoff: %d, ATR at takeoff: %.4f",
				s.BarsToRetest, s.BarsToTakeoff, s.ATRAtTakeoff)
		} else {
			output.Dim("    bars to retest: %d, bars to takeoff: %d",
				s.BarsToRetest, s.BarsToTakeoff)
		}
	}
	output.Println()
	output.Success("✓ %d signal(s) found", len(signals))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
