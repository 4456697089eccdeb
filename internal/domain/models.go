// Package domain holds the canonical market-data and trading types shared by
// all modules. It has no infrastructure dependencies.
package domain

import "time"

// TradeAction is a strategy decision direction.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
	ActionHold TradeAction = "HOLD"
)

// Quote is the canonical realtime quote shape every provider maps into.
// Absent or unparseable upstream fields normalize to 0, never NaN.
type Quote struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	ChangePct   float64   `json:"changePct"`
	Volume      float64   `json:"volume"`
	Amount      float64   `json:"amount,omitempty"`
	High        float64   `json:"high,omitempty"`
	Low         float64   `json:"low,omitempty"`
	Open        float64   `json:"open,omitempty"`
	PrevClose   float64   `json:"prevClose,omitempty"`
	MarketCap   float64   `json:"marketCap,omitempty"`
	PE          float64   `json:"pe,omitempty"`
	PB          float64   `json:"pb,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	RecentTrend []float64 `json:"trend,omitempty"`
}

// CatalogEntry is one security in the full catalog. Created or overwritten on
// each successful catalog refresh, never deleted except by explicit rebuild.
type CatalogEntry struct {
	Symbol      string    `json:"symbol"`
	MarketID    int       `json:"marketId"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	ChangePct   float64   `json:"changePct"`
	Volume      float64   `json:"volume"`
	Amount      float64   `json:"amount,omitempty"`
	High        float64   `json:"high,omitempty"`
	Low         float64   `json:"low,omitempty"`
	Open        float64   `json:"open,omitempty"`
	PrevClose   float64   `json:"prevClose,omitempty"`
	MarketCap   float64   `json:"marketCap,omitempty"`
	PE          float64   `json:"pe,omitempty"`
	PB          float64   `json:"pb,omitempty"`
	Trend       []float64 `json:"trend,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Quote converts a catalog entry to the quote shape, stamping ts.
func (e CatalogEntry) Quote(ts time.Time) Quote {
	return Quote{
		Symbol:      e.Symbol,
		Name:        e.Name,
		Price:       e.Price,
		ChangePct:   e.ChangePct,
		Volume:      e.Volume,
		Amount:      e.Amount,
		High:        e.High,
		Low:         e.Low,
		Open:        e.Open,
		PrevClose:   e.PrevClose,
		MarketCap:   e.MarketCap,
		PE:          e.PE,
		PB:          e.PB,
		Timestamp:   ts,
		RecentTrend: e.Trend,
	}
}

// KlineBar is one daily candle.
type KlineBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

// Decision is the strategy oracle's answer for one symbol.
type Decision struct {
	Action               TradeAction `json:"action"`
	Symbol               string      `json:"symbol"`
	Confidence           float64     `json:"confidence"`           // [0,1]
	SuggestedQuantityPct float64     `json:"suggestedQuantityPct"` // [0,100]
	StrategyLabel        string      `json:"strategyName"`
	Rationale            string      `json:"reasoning"`
}

// Hold returns a fail-closed HOLD decision for symbol.
func Hold(symbol, rationale string) Decision {
	return Decision{
		Action:    ActionHold,
		Symbol:    symbol,
		Rationale: rationale,
	}
}
