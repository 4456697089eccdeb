package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// maxEquityPoints bounds the in-memory equity curve, FIFO eviction.
const maxEquityPoints = 1000

// Ledger is one agent's account: cash, open positions and the equity curve.
// Mutations take the write lock so readers always observe cash and positions
// from the same instant, never a torn update.
type Ledger struct {
	mu          sync.RWMutex
	agentID     string
	cash        float64
	frozenCash  float64 // reserved for in-flight orders; fills settle instantly here, so it stays zero
	initialCash float64
	positions   map[string]*Position
	history     []EquityPoint
}

// NewLedger creates a ledger funded with initialCash.
func NewLedger(agentID string, initialCash float64) *Ledger {
	return &Ledger{
		agentID:     agentID,
		cash:        initialCash,
		initialCash: initialCash,
		positions:   make(map[string]*Position),
	}
}

// AgentID returns the owning agent.
func (l *Ledger) AgentID() string {
	return l.agentID
}

// ApplyQuoteUpdate re-marks every open position present in quotes and
// appends one equity point. Quotes for symbols not held are ignored.
func (l *Ledger) ApplyQuoteUpdate(quotes []domain.Quote, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, q := range quotes {
		p, ok := l.positions[q.Symbol]
		if !ok {
			continue
		}
		price := quotePrice(q)
		if price <= 0 {
			continue
		}
		p.CurrentPrice = price
		if q.Name != "" {
			p.Name = q.Name
		}
		l.remarkLocked(p)
	}

	l.recordEquityLocked(now)
}

func (l *Ledger) recordEquityLocked(now time.Time) {
	l.history = append(l.history, EquityPoint{
		Timestamp: now,
		Equity:    l.equityLocked(),
		Cash:      l.cash,
	})
	if len(l.history) > maxEquityPoints {
		l.history = l.history[len(l.history)-maxEquityPoints:]
	}
}

// ApplyFill mutates cash and the position map for one executed order.
// BUY averages the new shares into the cost basis; SELL reduces the
// position and removes it entirely when quantity reaches zero.
func (l *Ledger) ApplyFill(action domain.TradeAction, symbol, name string, execPrice float64, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("fill quantity must be positive, got %d", quantity)
	}
	if execPrice <= 0 {
		return fmt.Errorf("fill price must be positive, got %f", execPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := execPrice * float64(quantity)

	switch action {
	case domain.ActionBuy:
		if total > l.cash {
			return fmt.Errorf("insufficient cash: need %.2f, have %.2f", total, l.cash)
		}
		l.cash -= total

		p, ok := l.positions[symbol]
		if !ok {
			p = &Position{Symbol: symbol, Name: name}
			l.positions[symbol] = p
		}
		newQty := p.Quantity + quantity
		p.AvgCost = (p.AvgCost*float64(p.Quantity) + total) / float64(newQty)
		p.Quantity = newQty
		p.CurrentPrice = execPrice
		if name != "" {
			p.Name = name
		}
		l.remarkLocked(p)

	case domain.ActionSell:
		p, ok := l.positions[symbol]
		if !ok {
			return fmt.Errorf("no position in %s to sell", symbol)
		}
		if quantity > p.Quantity {
			return fmt.Errorf("sell of %d exceeds held %d in %s", quantity, p.Quantity, symbol)
		}
		l.cash += total
		p.Quantity -= quantity
		if p.Quantity == 0 {
			delete(l.positions, symbol)
		} else {
			p.CurrentPrice = execPrice
			l.remarkLocked(p)
		}

	default:
		return fmt.Errorf("unsupported fill action %q", action)
	}

	l.recordEquityLocked(time.Now())
	return nil
}

// Snapshot returns a deep copy of the ledger state. Positions come out in
// symbol order so snapshots are stable for display and export.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	history := make([]EquityPoint, len(l.history))
	copy(history, l.history)

	marketValue := 0.0
	for _, p := range positions {
		marketValue += p.MarketValue
	}

	return Snapshot{
		AgentID:       l.agentID,
		Cash:          l.cash,
		FrozenCash:    l.frozenCash,
		InitialCash:   l.initialCash,
		Positions:     positions,
		MarketValue:   marketValue,
		TotalEquity:   l.cash + l.frozenCash + marketValue,
		EquityHistory: history,
	}
}

// HeldSymbols returns the symbols with open positions.
func (l *Ledger) HeldSymbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	symbols := make([]string, 0, len(l.positions))
	for s := range l.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Cash returns the available cash.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Restore overwrites the ledger from a persisted snapshot.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = snap.Cash
	l.frozenCash = snap.FrozenCash
	if snap.InitialCash > 0 {
		l.initialCash = snap.InitialCash
	}
	l.positions = make(map[string]*Position, len(snap.Positions))
	for _, p := range snap.Positions {
		cp := p
		l.positions[p.Symbol] = &cp
	}
	l.history = make([]EquityPoint, len(snap.EquityHistory))
	copy(l.history, snap.EquityHistory)
}

func (l *Ledger) remarkLocked(p *Position) {
	p.MarketValue = p.CurrentPrice * float64(p.Quantity)
	cost := p.AvgCost * float64(p.Quantity)
	p.UnrealizedPnL = p.MarketValue - cost
	if cost > 0 {
		p.PnLPct = p.UnrealizedPnL / cost * 100
	} else {
		p.PnLPct = 0
	}
}

func (l *Ledger) equityLocked() float64 {
	total := l.cash + l.frozenCash
	for _, p := range l.positions {
		total += p.MarketValue
	}
	return total
}
