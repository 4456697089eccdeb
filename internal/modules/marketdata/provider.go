// Package marketdata aggregates multiple upstream quote providers behind a
// single call site and owns the two-tier security catalog cache.
package marketdata

import (
	"context"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// Provider is one upstream market data source. Implementations own endpoint
// selection, retry policy, field mapping into the canonical shapes, and safe
// numeric coercion. Both operations are fallible; the aggregator and cache
// decide what a failure means.
type Provider interface {
	// Name identifies the provider in logs and cache metadata.
	Name() string

	// FetchCatalogPage returns one page of the full security catalog plus the
	// total entry count upstream reports.
	FetchCatalogPage(ctx context.Context, page, pageSize int) ([]domain.CatalogEntry, int, error)

	// FetchQuotes returns realtime quotes for the given symbols. Symbols the
	// provider cannot resolve are simply absent from the result.
	FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error)
}

// HistorySource serves daily K-line history. Only some providers support it.
type HistorySource interface {
	FetchKlines(ctx context.Context, symbol string, days int) ([]domain.KlineBar, error)
}
