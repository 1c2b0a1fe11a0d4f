package store

import (
	"context"
	"database/sql"
	"fmt"

	"tradedash/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ CandleStore = (*SQLiteStore)(nil)

const candlesSchema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol     TEXT NOT NULL,
	interval   TEXT NOT NULL,
	open_time  INTEGER NOT NULL,
	open       TEXT NOT NULL,
	high       TEXT NOT NULL,
	low        TEXT NOT NULL,
	close      TEXT NOT NULL,
	volume     TEXT NOT NULL,
	close_time INTEGER NOT NULL,
	PRIMARY KEY (symbol, interval, open_time)
);`

// SQLiteStore implements CandleStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(candlesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating candles table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteCandles upserts a batch of candles keyed by (symbol, interval,
// open_time), so refreshing a window overwrites the partial last candle.
func (s *SQLiteStore) WriteCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles
			(symbol, interval, open_time, open, high, low, close, volume, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, interval,
			c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.CloseTime); err != nil {
			return fmt.Errorf("upserting candle %s/%s@%d: %w", symbol, interval, c.OpenTime, err)
		}
	}
	return tx.Commit()
}

// ReadCandles returns the most recent limit candles in ascending order.
func (s *SQLiteStore) ReadCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume, close_time
		FROM (
			SELECT * FROM candles
			WHERE symbol = ? AND interval = ?
			ORDER BY open_time DESC LIMIT ?
		)
		ORDER BY open_time ASC`, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.CloseTime); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
