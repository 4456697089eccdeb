package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/alphatrader/alphatrader/internal/database"
	"github.com/alphatrader/alphatrader/internal/domain"
)

// catalogColumns is the explicit column list for catalog_master.
// Order must match scanEntry.
const catalogColumns = `symbol, market_id, name, price, change_pct, volume, amount, high, low, open, prev_close, market_cap, pe, pb, trend, last_updated`

// CatalogRepository is the durable (authoritative) copy of the security
// catalog, backed by market.db.
type CatalogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, log zerolog.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: log.With().Str("repo", "catalog").Logger(),
	}
}

// Meta returns the last successful refresh timestamp and its source.
func (r *CatalogRepository) Meta() (time.Time, string, error) {
	var unix int64
	var source string
	err := r.db.QueryRow(`SELECT last_updated, source_id FROM catalog_meta WHERE id = 1`).Scan(&unix, &source)
	if err == sql.ErrNoRows {
		return time.Time{}, "", nil
	}
	if err != nil {
		return time.Time{}, "", fmt.Errorf("failed to read catalog meta: %w", err)
	}
	return time.Unix(unix, 0), source, nil
}

// ReplaceAll overwrites the catalog from a successful rebuild. All rows plus
// the meta row are written in one transaction so a reader never observes a
// partially-written catalog. A rebuild is the one event that drops delisted
// symbols, so the old rows are cleared first.
func (r *CatalogRepository) ReplaceAll(entries []domain.CatalogEntry, lastUpdated time.Time, sourceID string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM catalog_master`); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}

		stmt, err := tx.Prepare(upsertCatalogSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare catalog upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if err := execUpsert(stmt, e, lastUpdated); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`INSERT INTO catalog_meta (id, last_updated, source_id) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET last_updated=excluded.last_updated, source_id=excluded.source_id`,
			lastUpdated.Unix(), sourceID)
		if err != nil {
			return fmt.Errorf("failed to update catalog meta: %w", err)
		}
		return nil
	})
}

// UpdateQuotes refreshes quote fields for individual symbols between full
// rebuilds. Rows are upserted so a held position outside the current catalog
// still gets recorded; catalog_meta is left untouched.
func (r *CatalogRepository) UpdateQuotes(quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	now := time.Now()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertCatalogSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare quote upsert: %w", err)
		}
		defer stmt.Close()

		for _, q := range quotes {
			e := domain.CatalogEntry{
				Symbol:    q.Symbol,
				MarketID:  marketIDFor(q.Symbol),
				Name:      q.Name,
				Price:     q.Price,
				ChangePct: q.ChangePct,
				Volume:    q.Volume,
				Amount:    q.Amount,
				High:      q.High,
				Low:       q.Low,
				Open:      q.Open,
				PrevClose: q.PrevClose,
				MarketCap: q.MarketCap,
				PE:        q.PE,
				PB:        q.PB,
				Trend:     q.RecentTrend,
			}
			if err := execUpsert(stmt, e, now); err != nil {
				return err
			}
		}
		return nil
	})
}

const upsertCatalogSQL = `
	INSERT INTO catalog_master
	(symbol, market_id, name, price, change_pct, volume, amount, high, low, open, prev_close, market_cap, pe, pb, trend, last_updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(symbol) DO UPDATE SET
	  market_id=excluded.market_id,
	  name=CASE WHEN excluded.name != '' THEN excluded.name ELSE catalog_master.name END,
	  price=excluded.price,
	  change_pct=excluded.change_pct,
	  volume=excluded.volume,
	  amount=excluded.amount,
	  high=excluded.high,
	  low=excluded.low,
	  open=excluded.open,
	  prev_close=excluded.prev_close,
	  market_cap=excluded.market_cap,
	  pe=excluded.pe,
	  pb=excluded.pb,
	  trend=excluded.trend,
	  last_updated=excluded.last_updated`

func execUpsert(stmt *sql.Stmt, e domain.CatalogEntry, lastUpdated time.Time) error {
	var trendBlob []byte
	if len(e.Trend) > 0 {
		b, err := msgpack.Marshal(e.Trend)
		if err != nil {
			return fmt.Errorf("failed to encode trend for %s: %w", e.Symbol, err)
		}
		trendBlob = b
	}

	_, err := stmt.Exec(
		strings.TrimSpace(e.Symbol),
		e.MarketID,
		e.Name,
		e.Price,
		e.ChangePct,
		e.Volume,
		e.Amount,
		e.High,
		e.Low,
		e.Open,
		e.PrevClose,
		e.MarketCap,
		e.PE,
		e.PB,
		trendBlob,
		lastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry %s: %w", e.Symbol, err)
	}
	return nil
}

// ReadPage returns one page of the catalog, optionally filtered by a
// case-insensitive substring match on symbol or name, plus the total count
// under the same filter.
func (r *CatalogRepository) ReadPage(page, pageSize int, keyword string) ([]domain.CatalogEntry, int, error) {
	where := ""
	args := []interface{}{}
	if keyword != "" {
		where = ` WHERE LOWER(symbol) LIKE ? OR LOWER(name) LIKE ?`
		pattern := "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog_master`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count catalog entries: %w", err)
	}

	if page < 1 {
		page = 1
	}
	query := `SELECT ` + catalogColumns + ` FROM catalog_master` + where + ` ORDER BY symbol LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query catalog page: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// All returns every catalog entry, used to refresh the flat-file mirror.
func (r *CatalogRepository) All() ([]domain.CatalogEntry, error) {
	rows, err := r.db.Query(`SELECT ` + catalogColumns + ` FROM catalog_master ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of catalog entries.
func (r *CatalogRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog_master`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	var trendBlob []byte
	var unix int64

	err := rows.Scan(
		&e.Symbol, &e.MarketID, &e.Name, &e.Price, &e.ChangePct, &e.Volume, &e.Amount,
		&e.High, &e.Low, &e.Open, &e.PrevClose, &e.MarketCap, &e.PE, &e.PB,
		&trendBlob, &unix,
	)
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("failed to scan catalog entry: %w", err)
	}

	if len(trendBlob) > 0 {
		// A trend blob that fails to decode is dropped, not fatal
		if err := msgpack.Unmarshal(trendBlob, &e.Trend); err != nil {
			e.Trend = nil
		}
	}
	e.LastUpdated = time.Unix(unix, 0)
	return e, nil
}

func marketIDFor(symbol string) int {
	if strings.HasPrefix(symbol, "6") {
		return 1
	}
	return 0
}
