package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/market_hours"
)

const (
	catalogPageSize = 100
	// maxCatalogPages bounds a rebuild so a provider that keeps reporting
	// more totals cannot spin forever.
	maxCatalogPages = 60
)

// Snapshot is one catalog read, tagged with where it came from.
type Snapshot struct {
	Entries     []domain.CatalogEntry
	LastUpdated time.Time
	Tier        string
	Stale       bool
}

// CatalogCache layers the durable sqlite copy, the flat-file mirror and the
// live providers into a single read path:
//
//	fresh durable -> fresh mirror -> rebuild -> stale durable -> stale mirror
//
// Freshness follows the trading calendar: while the market is closed the TTL
// clock is suspended, so an overnight catalog is served as fresh until the
// next session opens.
type CatalogCache struct {
	repo      *CatalogRepository
	file      *CatalogFile
	providers []Provider
	calendar  *market_hours.Calendar
	ttl       time.Duration
	log       zerolog.Logger

	// now is swapped out in tests
	now func() time.Time

	// rebuildMu serializes rebuilds; concurrent readers piggyback on the
	// winner's result instead of hammering the providers.
	rebuildMu sync.Mutex
}

// NewCatalogCache wires the cache tiers together.
func NewCatalogCache(repo *CatalogRepository, file *CatalogFile, providers []Provider, calendar *market_hours.Calendar, ttl time.Duration, log zerolog.Logger) *CatalogCache {
	return &CatalogCache{
		repo:      repo,
		file:      file,
		providers: providers,
		calendar:  calendar,
		ttl:       ttl,
		log:       log.With().Str("component", "catalog_cache").Logger(),
		now:       time.Now,
	}
}

// fresh reports whether a catalog written at ts still counts as current.
func (c *CatalogCache) fresh(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	now := c.now()
	if !c.calendar.IsSessionOpen(now) {
		return true
	}
	return now.Sub(ts) < c.ttl
}

// Read serves the catalog through the tier chain. It returns
// ErrAllSourcesExhausted only when every tier, including a rebuild attempt,
// came up empty.
func (c *CatalogCache) Read(ctx context.Context) (*Snapshot, error) {
	durable, durableTS, durableErr := c.readDurable()
	if durableErr != nil {
		c.log.Warn().Err(durableErr).Msg("Durable catalog read failed")
	}
	if len(durable) > 0 && c.fresh(durableTS) {
		return &Snapshot{Entries: durable, LastUpdated: durableTS, Tier: "durable"}, nil
	}

	mirror, mirrorTS, mirrorErr := c.file.Read()
	if mirrorErr != nil {
		c.log.Warn().Err(mirrorErr).Msg("Catalog mirror read failed")
	}
	if len(mirror) > 0 && c.fresh(mirrorTS) {
		return &Snapshot{Entries: mirror, LastUpdated: mirrorTS, Tier: "file"}, nil
	}

	if snap, err := c.Rebuild(ctx); err == nil {
		return snap, nil
	} else {
		c.log.Warn().Err(err).Msg("Catalog rebuild failed, falling back to stale tiers")
	}

	if len(durable) > 0 {
		return &Snapshot{Entries: durable, LastUpdated: durableTS, Tier: "durable", Stale: true}, nil
	}
	if len(mirror) > 0 {
		return &Snapshot{Entries: mirror, LastUpdated: mirrorTS, Tier: "file", Stale: true}, nil
	}
	return nil, fmt.Errorf("catalog read: %w", domain.ErrAllSourcesExhausted)
}

// Rebuild pulls the full catalog from the first provider that can deliver it
// and replaces both persistent tiers. Safe for concurrent callers.
func (c *CatalogCache) Rebuild(ctx context.Context) (*Snapshot, error) {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	for _, p := range c.providers {
		entries, err := c.fetchFullCatalog(ctx, p)
		if err != nil {
			c.log.Warn().Err(err).Str("provider", p.Name()).Msg("Catalog rebuild via provider failed")
			continue
		}
		if len(entries) == 0 {
			continue
		}

		// The mirror is the tier of last resort, so it is written first; a
		// crash between the two writes must never leave it older than the
		// durable copy.
		ts := c.now()
		if err := c.file.Write(entries, ts); err != nil {
			c.log.Error().Err(err).Msg("Failed to write catalog mirror")
		}
		if err := c.repo.ReplaceAll(entries, ts, p.Name()); err != nil {
			c.log.Error().Err(err).Msg("Failed to persist rebuilt catalog")
		}

		c.log.Info().Str("provider", p.Name()).Int("entries", len(entries)).Msg("Catalog rebuilt")
		return &Snapshot{Entries: entries, LastUpdated: ts, Tier: "rebuild"}, nil
	}
	return nil, fmt.Errorf("catalog rebuild: %w", domain.ErrAllSourcesExhausted)
}

// fetchFullCatalog paginates one provider until the reported total is
// reached. A failure on any page discards the partial result; a half catalog
// must never replace a whole one.
func (c *CatalogCache) fetchFullCatalog(ctx context.Context, p Provider) ([]domain.CatalogEntry, error) {
	var all []domain.CatalogEntry
	for page := 1; page <= maxCatalogPages; page++ {
		entries, total, err := p.FetchCatalogPage(ctx, page, catalogPageSize)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(entries) == 0 {
			break
		}
		all = append(all, entries...)
		if len(all) >= total {
			break
		}
	}
	return all, nil
}

func (c *CatalogCache) readDurable() ([]domain.CatalogEntry, time.Time, error) {
	ts, _, err := c.repo.Meta()
	if err != nil {
		return nil, time.Time{}, err
	}
	entries, err := c.repo.All()
	if err != nil {
		return nil, time.Time{}, err
	}
	return entries, ts, nil
}
