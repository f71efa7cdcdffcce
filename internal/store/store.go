// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"retest-scanner/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candle cache
	SaveCandles(ctx context.Context, symbol string, interval models.Interval, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string, interval models.Interval) (time.Time, error)

	// Scan history
	SaveScanRun(ctx context.Context, run *models.ScanRun, signals []models.Signal) (int64, error)
	GetScanRuns(ctx context.Context, symbol string, limit int) ([]models.ScanRun, error)
	GetSignals(ctx context.Context, runID int64) ([]models.Signal, error)
	GetLatestSignals(ctx context.Context, symbol string) ([]models.Signal, error)

	// Lifecycle
	Close() error
}
