package trading

import (
	"sync"

	"github.com/rs/zerolog"
)

// unhealthyThreshold is how many consecutive fetch failures trip the flag.
const unhealthyThreshold = 3

// MarketHealth is the process-wide circuit that suspends order submission
// when market data cannot be trusted. It is the only place the flag lives;
// task bodies report outcomes here instead of flipping state themselves.
type MarketHealth struct {
	mu        sync.Mutex
	failures  int
	unhealthy bool
	log       zerolog.Logger
}

// NewMarketHealth creates a healthy tracker.
func NewMarketHealth(log zerolog.Logger) *MarketHealth {
	return &MarketHealth{log: log.With().Str("component", "market_health").Logger()}
}

// RecordFailure counts one failed data fetch. The third consecutive failure
// flips the market to unhealthy.
func (h *MarketHealth) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures++
	if h.failures >= unhealthyThreshold && !h.unhealthy {
		h.unhealthy = true
		h.log.Error().Int("consecutive_failures", h.failures).
			Msg("Market data unhealthy, suspending order submission")
	}
}

// RecordSuccess clears the failure streak and, if tripped, restores health.
func (h *MarketHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures = 0
	if h.unhealthy {
		h.unhealthy = false
		h.log.Info().Msg("Market data recovered, order submission resumed")
	}
}

// Healthy reports whether order submission is currently allowed.
func (h *MarketHealth) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.unhealthy
}
