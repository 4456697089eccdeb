package marketdata

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// Aggregator composes multiple providers behind a single quote call.
// Providers are tried in fixed priority order; each provider only sees the
// symbols still unresolved, so one flaky source degrades the batch instead of
// failing it.
type Aggregator struct {
	providers []Provider
	log       zerolog.Logger
}

// NewAggregator creates an aggregator with the given priority order.
func NewAggregator(providers []Provider, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		providers: providers,
		log:       log.With().Str("component", "quote_aggregator").Logger(),
	}
}

// GetQuotes resolves quotes best-effort. The result holds at most one quote
// per requested symbol and never a symbol that wasn't requested; unresolved
// symbols are absent. An error is returned only when every provider call
// failed outright.
func (a *Aggregator) GetQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	remaining := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		remaining[s] = true
	}

	resolved := make(map[string]domain.Quote, len(symbols))
	anySuccess := false

	for _, p := range a.providers {
		if len(remaining) == 0 {
			break
		}

		want := make([]string, 0, len(remaining))
		for s := range remaining {
			want = append(want, s)
		}

		quotes, err := p.FetchQuotes(ctx, want)
		if err != nil {
			a.log.Warn().Err(err).Str("provider", p.Name()).Int("pending", len(want)).
				Msg("Provider failed, falling through")
			continue
		}
		anySuccess = true

		for _, q := range quotes {
			// Only accept symbols that are still part of this batch
			if !remaining[q.Symbol] {
				continue
			}
			resolved[q.Symbol] = q
			delete(remaining, q.Symbol)
		}
	}

	if !anySuccess {
		return nil, fmt.Errorf("quote fetch: %w", domain.ErrAllSourcesExhausted)
	}

	// Preserve the caller's symbol order, one quote per symbol even if the
	// request contained duplicates
	out := make([]domain.Quote, 0, len(resolved))
	for _, s := range symbols {
		if q, ok := resolved[s]; ok {
			out = append(out, q)
			delete(resolved, s)
		}
	}
	return out, nil
}
