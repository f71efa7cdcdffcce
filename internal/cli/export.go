package cli

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retest-scanner/internal/models"
)

// signalCSVHeader is the fixed column order for signal exports.
var signalCSVHeader = []string{
	"symbol",
	"breakout_index", "breakout_time",
	"retest_index", "retest_time",
	"takeoff_index", "takeoff_time",
	"level", "retest_low", "takeoff_close",
	"return_from_level", "bars_to_retest", "bars_to_takeoff",
	"atr_at_takeoff",
}

// writeSignalsCSV writes signals with full float64 precision so a
// re-import reproduces the detection run exactly. Undefined ATR values
// export as an empty field.
func writeSignalsCSV(w io.Writer, signals []models.Signal) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(signalCSVHeader); err != nil {
		return err
	}

	for _, s := range signals {
		atr := ""
		if !math.IsNaN(s.ATRAtTakeoff) {
			atr = formatFloat(s.ATRAtTakeoff)
		}
		record := []string{
			s.Symbol,
			strconv.Itoa(s.BreakoutIndex), s.BreakoutTime.UTC().Format(time.RFC3339),
			strconv.Itoa(s.RetestIndex), s.RetestTime.UTC().Format(time.RFC3339),
			strconv.Itoa(s.TakeoffIndex), s.TakeoffTime.UTC().Format(time.RFC3339),
			formatFloat(s.Level), formatFloat(s.RetestLow), formatFloat(s.TakeoffClose),
			formatFloat(s.ReturnFromLevel),
			strconv.Itoa(s.BarsToRetest), strconv.Itoa(s.BarsToTakeoff),
			atr,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatFloat renders a float64 with the shortest representation that
// round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Export detected signals to CSV",
		Long: `Export the signals of a past scan run to CSV.

By default the most recent run for the symbol is exported; use --run
to pick a specific run ID from 'retest history'. Numeric fields keep
full precision so the file round-trips the detection run.`,
		Example: `  retest export BTC-USD --out signals.csv
  retest export BTC-USD --run 12 --out signals.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Scan history store is not available.")
				return nil
			}

			symbol := strings.ToUpper(args[0])
			outFile, _ := cmd.Flags().GetString("out")
			runID, _ := cmd.Flags().GetInt64("run")

			var signals []models.Signal
			var err error
			if runID > 0 {
				signals, err = app.Store.GetSignals(ctx, runID)
			} else {
				signals, err = app.Store.GetLatestSignals(ctx, symbol)
			}
			if err != nil {
				output.Error("Failed to load signals: %v", err)
				return err
			}
			if len(signals) == 0 {
				output.Warning("No signals to export for %s", symbol)
				return nil
			}

			file, err := os.Create(outFile)
			if err != nil {
				output.Error("Failed to create file: %v", err)
				return err
			}
			defer file.Close()

			if err := writeSignalsCSV(file, signals); err != nil {
				output.Error("Failed to write CSV: %v", err)
				return err
			}

			output.Success("✓ Exported %d signal(s) to %s", len(signals), outFile)
			return nil
		},
	}

	cmd.Flags().String("out", "signals.csv", "output file path")
	cmd.Flags().Int64("run", 0, "scan run ID to export (default: latest for symbol)")

	return cmd
}
