// Package sqlite persists the candle cache and the signal journal. Candles
// back historical scoring without refetching; the journal is an audit trail
// of every emitted transition.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"signal-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer keeps WAL contention out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS signal_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			direction  TEXT    NOT NULL,
			strength   REAL    NOT NULL,
			reason     TEXT    NOT NULL,
			price      REAL    NOT NULL,
			indicators TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_signal_events_pair
			ON signal_events (symbol, interval, ts);
	`)
	return err
}

// SaveCandles upserts a candle series for one (symbol, interval) pair in a
// single transaction. Re-fetched ranges overwrite in place.
func (w *Writer) SaveCandles(symbol, interval string, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(symbol, interval, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert candle: %w", err)
		}
	}
	return tx.Commit()
}

// SaveEvent journals one emitted signal transition.
func (w *Writer) SaveEvent(ev model.SignalEvent) error {
	var indicators []byte
	if len(ev.Indicators) > 0 {
		indicators, _ = json.Marshal(ev.Indicators)
	}
	_, err := w.db.Exec(`
		INSERT INTO signal_events (symbol, interval, ts, direction, strength, reason, price, indicators)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Symbol, ev.Interval, ev.TS.Unix(), string(ev.Direction), ev.Strength, ev.Reason, ev.Price, string(indicators))
	if err != nil {
		return fmt.Errorf("sqlite insert event: %w", err)
	}
	return nil
}

// Run drains the event channel into the journal in batched transactions.
// Flushes every batchSize events OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or the channel is closed.
func (w *Writer) Run(ctx context.Context, events <-chan model.SignalEvent) {
	batch := make([]model.SignalEvent, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] journaled %d events in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case ev, ok := <-events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertBatch(events []model.SignalEvent) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO signal_events (symbol, interval, ts, direction, strength, reason, price, indicators)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		var indicators []byte
		if len(ev.Indicators) > 0 {
			indicators, _ = json.Marshal(ev.Indicators)
		}
		if _, err := stmt.Exec(ev.Symbol, ev.Interval, ev.TS.Unix(), string(ev.Direction),
			ev.Strength, ev.Reason, ev.Price, string(indicators)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LastCandleTS returns the newest cached candle timestamp for a pair, or 0
// when the cache is empty.
func (w *Writer) LastCandleTS(symbol, interval string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND interval = ?`,
		symbol, interval,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
