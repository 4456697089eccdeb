package domain

import "errors"

// ErrAllSourcesExhausted means every data tier failed: no provider answered
// and no cached copy (fresh or stale) exists. It is the only market-data
// failure that propagates to the orchestrator, which must then raise the
// market-unhealthy flag and suspend trading.
var ErrAllSourcesExhausted = errors.New("all market data sources exhausted")
