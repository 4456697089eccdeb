package marketdata

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/database"
	"github.com/alphatrader/alphatrader/internal/domain"
)

// HistoryRepository caches daily K-line bars in market.db so indicator
// context survives provider outages.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new K-line repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// Upsert stores bars for one symbol, last write wins per (symbol, date).
func (r *HistoryRepository) Upsert(symbol string, bars []domain.KlineBar) error {
	if len(bars) == 0 {
		return nil
	}
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO kline_daily (symbol, date, open, close, high, low, volume, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
			  open=excluded.open, close=excluded.close, high=excluded.high,
			  low=excluded.low, volume=excluded.volume, amount=excluded.amount`)
		if err != nil {
			return fmt.Errorf("failed to prepare kline upsert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.Exec(symbol, b.Date, b.Open, b.Close, b.High, b.Low, b.Volume, b.Amount); err != nil {
				return fmt.Errorf("failed to upsert kline %s %s: %w", symbol, b.Date, err)
			}
		}
		return nil
	})
}

// Recent returns up to limit most recent bars for symbol in ascending date
// order, oldest first.
func (r *HistoryRepository) Recent(symbol string, limit int) ([]domain.KlineBar, error) {
	rows, err := r.db.Query(`
		SELECT date, open, close, high, low, volume, amount
		FROM (
		  SELECT date, open, close, high, low, volume, amount
		  FROM kline_daily WHERE symbol = ?
		  ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query klines for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.KlineBar
	for rows.Next() {
		var b domain.KlineBar
		if err := rows.Scan(&b.Date, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume, &b.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan kline: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
