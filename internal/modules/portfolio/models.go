// Package portfolio tracks per-agent cash, positions and equity history.
package portfolio

import (
	"time"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// Position is one open holding.
type Position struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Quantity      int64   `json:"quantity"`
	AvgCost       float64 `json:"avgCost"`
	CurrentPrice  float64 `json:"currentPrice"`
	MarketValue   float64 `json:"marketValue"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	PnLPct        float64 `json:"pnlPct"`
}

// EquityPoint is one mark of total account value over time.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
}

// Snapshot is a consistent point-in-time copy of a ledger, safe to hand to
// concurrent readers.
type Snapshot struct {
	AgentID       string        `json:"agentId"`
	Cash          float64       `json:"cash"`
	FrozenCash    float64       `json:"frozenCash"`
	InitialCash   float64       `json:"initialCash"`
	Positions     []Position    `json:"positions"`
	MarketValue   float64       `json:"marketValue"`
	TotalEquity   float64       `json:"totalEquity"`
	EquityHistory []EquityPoint `json:"equityHistory"`
}

// PositionValue returns the market value held in symbol, zero if absent.
func (s Snapshot) PositionValue(symbol string) float64 {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p.MarketValue
		}
	}
	return 0
}

// Position returns the holding for symbol, or nil.
func (s Snapshot) Position(symbol string) *Position {
	for i := range s.Positions {
		if s.Positions[i].Symbol == symbol {
			return &s.Positions[i]
		}
	}
	return nil
}

// quotePrice picks the usable mark price from a quote.
func quotePrice(q domain.Quote) float64 {
	if q.Price > 0 {
		return q.Price
	}
	return 0
}
