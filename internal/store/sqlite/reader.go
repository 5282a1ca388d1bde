package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"signal-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the candle cache and signal journal.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles returns the cached candles for a pair after afterTS, ordered by
// timestamp ascending so callers can score directly.
func (r *Reader) ReadCandles(symbol, interval string, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, interval, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// RecentEvents returns the newest journaled transitions for a pair, newest
// first, capped at limit.
func (r *Reader) RecentEvents(symbol, interval string, limit int) ([]model.SignalEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT symbol, interval, ts, direction, strength, reason, price, indicators
		FROM signal_events
		WHERE symbol = ? AND interval = ?
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query events: %w", err)
	}
	defer rows.Close()

	var events []model.SignalEvent
	for rows.Next() {
		var ev model.SignalEvent
		var tsUnix int64
		var direction, indicators string
		if err := rows.Scan(&ev.Symbol, &ev.Interval, &tsUnix, &direction,
			&ev.Strength, &ev.Reason, &ev.Price, &indicators); err != nil {
			return nil, fmt.Errorf("sqlite scan event: %w", err)
		}
		ev.TS = time.Unix(tsUnix, 0).UTC()
		ev.Direction = model.Direction(direction)
		if indicators != "" {
			_ = json.Unmarshal([]byte(indicators), &ev.Indicators)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
