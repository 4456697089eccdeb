package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// maxQuoteBatch bounds one quote call to keep provider load predictable.
const maxQuoteBatch = 100

// defaultHistoryDays is the K-line lookback when the caller doesn't say.
const defaultHistoryDays = 60

// CatalogPage is one page of the catalog as served to callers, with the
// freshness verdict attached.
type CatalogPage struct {
	Entries     []domain.CatalogEntry `json:"data"`
	Total       int                   `json:"total"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"pageSize"`
	LastUpdated time.Time             `json:"lastUpdated"`
	Expired     bool                  `json:"expired"`
	Tier        string                `json:"tier"`
}

// Service is the market data facade: catalog queries through the cache
// tiers, batched quotes through the aggregator, and K-line history with a
// durable fallback.
type Service struct {
	cache      *CatalogCache
	aggregator *Aggregator
	catalogs   *CatalogRepository
	history    *HistoryRepository
	remote     HistorySource
	log        zerolog.Logger
}

// NewService wires the market data facade.
func NewService(cache *CatalogCache, aggregator *Aggregator, catalogs *CatalogRepository, history *HistoryRepository, remote HistorySource, log zerolog.Logger) *Service {
	return &Service{
		cache:      cache,
		aggregator: aggregator,
		catalogs:   catalogs,
		history:    history,
		remote:     remote,
		log:        log.With().Str("service", "marketdata").Logger(),
	}
}

// Catalog serves one filtered page. A stale snapshot is still served, marked
// Expired, so the caller decides whether degraded data is acceptable.
func (s *Service) Catalog(ctx context.Context, page, pageSize int, keyword string) (*CatalogPage, error) {
	snap, err := s.cache.Read(ctx)
	if err != nil {
		return nil, err
	}

	entries := snap.Entries
	if keyword != "" {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		filtered := make([]domain.CatalogEntry, 0, len(entries))
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Symbol), needle) ||
				strings.Contains(strings.ToLower(e.Name), needle) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	total := len(entries)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = catalogPageSize
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &CatalogPage{
		Entries:     entries[start:end],
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		LastUpdated: snap.LastUpdated,
		Expired:     snap.Stale,
		Tier:        snap.Tier,
	}, nil
}

// Refresh forces a catalog rebuild, bypassing freshness checks.
func (s *Service) Refresh(ctx context.Context) (*CatalogPage, error) {
	snap, err := s.cache.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	return &CatalogPage{
		Entries:     snap.Entries,
		Total:       len(snap.Entries),
		Page:        1,
		PageSize:    len(snap.Entries),
		LastUpdated: snap.LastUpdated,
		Tier:        snap.Tier,
	}, nil
}

// Quotes fetches realtime quotes for up to maxQuoteBatch symbols and writes
// them through to the durable catalog so equity marks survive restarts.
func (s *Service) Quotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if len(symbols) > maxQuoteBatch {
		return nil, fmt.Errorf("quote batch of %d exceeds limit of %d symbols", len(symbols), maxQuoteBatch)
	}

	quotes, err := s.aggregator.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	if err := s.catalogs.UpdateQuotes(quotes); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write quotes through to catalog")
	}
	return quotes, nil
}

// History returns up to days daily bars for symbol, oldest first. The remote
// source is preferred and its result cached; on remote failure the cached
// bars are served instead.
func (s *Service) History(ctx context.Context, symbol string, days int) ([]domain.KlineBar, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}

	bars, err := s.remote.FetchKlines(ctx, symbol, days)
	if err == nil && len(bars) > 0 {
		if uerr := s.history.Upsert(symbol, bars); uerr != nil {
			s.log.Warn().Err(uerr).Str("symbol", symbol).Msg("Failed to cache kline history")
		}
		return bars, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Remote kline fetch failed, using cached bars")
	}

	cached, cerr := s.history.Recent(symbol, days)
	if cerr != nil {
		return nil, fmt.Errorf("kline history for %s: %w", symbol, cerr)
	}
	return cached, nil
}

// Indicators computes the technical summary for symbol from recent history.
func (s *Service) Indicators(ctx context.Context, symbol string) (IndicatorSet, []domain.KlineBar, error) {
	bars, err := s.History(ctx, symbol, defaultHistoryDays)
	if err != nil {
		return IndicatorSet{}, nil, err
	}
	return ComputeIndicators(bars), bars, nil
}
