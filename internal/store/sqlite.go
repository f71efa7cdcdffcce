// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"retest-scanner/internal/errors"
	"retest-scanner/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for cached OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, interval, timestamp)
	);

	-- One row per scanner invocation
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		level REAL NOT NULL,
		run_at DATETIME NOT NULL,
		inverted TEXT NOT NULL DEFAULT '',
		signal_count INTEGER NOT NULL
	);

	-- Detected signals, immutable once written
	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		breakout_index INTEGER NOT NULL,
		breakout_time DATETIME NOT NULL,
		retest_index INTEGER NOT NULL,
		retest_time DATETIME NOT NULL,
		takeoff_index INTEGER NOT NULL,
		takeoff_time DATETIME NOT NULL,
		level REAL NOT NULL,
		retest_low REAL NOT NULL,
		takeoff_close REAL NOT NULL,
		return_from_level REAL NOT NULL,
		atr_at_takeoff REAL,
		FOREIGN KEY (run_id) REFERENCES scan_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles(symbol, interval, timestamp);
	CREATE INDEX IF NOT EXISTS idx_scan_runs_symbol ON scan_runs(symbol, run_at);
	CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCandles upserts candles into the cache.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, interval models.Interval, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("save candles", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, interval, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, timestamp) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`)
	if err != nil {
		return errors.NewStoreError("save candles", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, string(interval), c.Timestamp.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return errors.NewStoreError("save candles", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("save candles", err)
	}
	return nil
}

// GetCandles returns cached candles in [from, to] ordered by timestamp.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`,
		symbol, string(interval), from.UTC(), to.UTC())
	if err != nil {
		return nil, errors.NewStoreError("get candles", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.NewStoreError("get candles", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// GetCandlesFreshness returns the newest cached timestamp for a series.
// The query selects the declared column rather than MAX(timestamp);
// the driver only converts declared DATETIME columns to time.Time, an
// aggregate expression comes back as a string.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol string, interval models.Interval) (time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp FROM candles
		WHERE symbol = ? AND interval = ?
		ORDER BY timestamp DESC LIMIT 1`,
		symbol, string(interval)).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, errors.ErrDataNotFound
	}
	if err != nil {
		return time.Time{}, errors.NewStoreError("candles freshness", err)
	}
	return ts, nil
}

// SaveScanRun persists a run and its signals in one transaction and
// returns the run ID.
func (s *SQLiteStore) SaveScanRun(ctx context.Context, run *models.ScanRun, signals []models.Signal) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStoreError("save scan run", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scan_runs (symbol, interval, level, run_at, inverted, signal_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Symbol, string(run.Interval), run.Level, run.RunAt.UTC(), run.Inverted, len(signals))
	if err != nil {
		return 0, errors.NewStoreError("save scan run", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.NewStoreError("save scan run", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals (run_id, breakout_index, breakout_time, retest_index, retest_time,
			takeoff_index, takeoff_time, level, retest_low, takeoff_close, return_from_level, atr_at_takeoff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.NewStoreError("save signals", err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		atr := sql.NullFloat64{Float64: sig.ATRAtTakeoff, Valid: !math.IsNaN(sig.ATRAtTakeoff)}
		if _, err := stmt.ExecContext(ctx, runID,
			sig.BreakoutIndex, sig.BreakoutTime.UTC(),
			sig.RetestIndex, sig.RetestTime.UTC(),
			sig.TakeoffIndex, sig.TakeoffTime.UTC(),
			sig.Level, sig.RetestLow, sig.TakeoffClose, sig.ReturnFromLevel, atr); err != nil {
			return 0, errors.NewStoreError("save signals", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStoreError("save scan run", err)
	}
	return runID, nil
}

// GetScanRuns returns the most recent runs for a symbol, newest first.
// An empty symbol matches all runs.
func (s *SQLiteStore) GetScanRuns(ctx context.Context, symbol string, limit int) ([]models.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, interval, level, run_at, inverted, signal_count
		FROM scan_runs
		WHERE (? = '' OR symbol = ?)
		ORDER BY run_at DESC
		LIMIT ?`,
		symbol, symbol, limit)
	if err != nil {
		return nil, errors.NewStoreError("get scan runs", err)
	}
	defer rows.Close()

	var runs []models.ScanRun
	for rows.Next() {
		var r models.ScanRun
		var interval string
		if err := rows.Scan(&r.ID, &r.Symbol, &interval, &r.Level, &r.RunAt, &r.Inverted, &r.SignalCount); err != nil {
			return nil, errors.NewStoreError("get scan runs", err)
		}
		r.Interval = models.Interval(interval)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetSignals returns the signals of one run ordered by takeoff index.
func (s *SQLiteStore) GetSignals(ctx context.Context, runID int64) ([]models.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.symbol, sg.breakout_index, sg.breakout_time, sg.retest_index, sg.retest_time,
			sg.takeoff_index, sg.takeoff_time, sg.level, sg.retest_low, sg.takeoff_close,
			sg.return_from_level, sg.atr_at_takeoff
		FROM signals sg
		JOIN scan_runs sr ON sr.id = sg.run_id
		WHERE sg.run_id = ?
		ORDER BY sg.takeoff_index ASC`, runID)
	if err != nil {
		return nil, errors.NewStoreError("get signals", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

// GetLatestSignals returns the signals of the most recent run for a symbol.
func (s *SQLiteStore) GetLatestSignals(ctx context.Context, symbol string) ([]models.Signal, error) {
	var runID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM scan_runs WHERE symbol = ? ORDER BY run_at DESC LIMIT 1`,
		symbol).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDataNotFound
	}
	if err != nil {
		return nil, errors.NewStoreError("get latest signals", err)
	}
	return s.GetSignals(ctx, runID)
}

func scanSignalRows(rows *sql.Rows) ([]models.Signal, error) {
	var signals []models.Signal
	for rows.Next() {
		var sig models.Signal
		var atr sql.NullFloat64
		if err := rows.Scan(&sig.Symbol,
			&sig.BreakoutIndex, &sig.BreakoutTime,
			&sig.RetestIndex, &sig.RetestTime,
			&sig.TakeoffIndex, &sig.TakeoffTime,
			&sig.Level, &sig.RetestLow, &sig.TakeoffClose,
			&sig.ReturnFromLevel, &atr); err != nil {
			return nil, errors.NewStoreError("scan signal row", err)
		}
		if atr.Valid {
			sig.ATRAtTakeoff = atr.Float64
		} else {
			sig.ATRAtTakeoff = math.NaN()
		}
		sig.BarsToRetest = sig.RetestIndex - sig.BreakoutIndex
		sig.BarsToTakeoff = sig.TakeoffIndex - sig.RetestIndex
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
