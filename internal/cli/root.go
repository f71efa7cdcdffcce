// Package cli provides the command-line interface for the scanner application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"retest-scanner/internal/config"
	"retest-scanner/internal/feed"
	"retest-scanner/internal/logging"
	"retest-scanner/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Feed   *feed.Client
	Store  store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.Feed = feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, logger)

	dbPath := config.DefaultConfigDir() + "/scanner.db"
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, scan history will be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "retest",
		Short: "Level retest scanner - breakout/retest/takeoff pattern detection",
		Long: `Retest scans a price series for a three phase pattern: a close
breaking above a key level, a pullback that retests the level, and an
aggressive takeoff beyond a percentage or ATR-scaled threshold.

Data is fetched from the market data provider and cached locally.
Detected signals can be exported to CSV or drawn on a chart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/retest-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newChartCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
				return
			}
			output.Printf("retest %s\n", Version)
		},
	}
}
