// Package trading holds the risk policy, execution engine and fill ledger.
package trading

import (
	"fmt"
	"time"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// OrderState is the terminal status stamped on a fill record. Intermediate
// lifecycle stages (proposal, risk check, broker round-trip) live in the
// engine's control flow and are never persisted; only the outcome is.
type OrderState string

const (
	StateFilled   OrderState = "FILLED"
	StateRejected OrderState = "REJECTED"
)

// Proposal is a strategy decision bound to a live price, before risk checks.
type Proposal struct {
	AgentID      string
	Symbol       string
	Name         string
	Action       domain.TradeAction
	Price        float64 // reference price at decision time
	RequestedPct float64 // of cash for BUY, of held quantity for SELL
	Confidence   float64
	StrategyTag  string
	Rationale    string
}

// AdmissibleOrder is a proposal that passed every risk gate, with the final
// quantity and modeled execution price attached.
type AdmissibleOrder struct {
	Proposal  Proposal
	Quantity  int64
	ExecPrice float64
}

// Rejection explains why a proposal was refused. It is a result, not an
// error; callers report it to the user rather than propagating it.
type Rejection struct {
	Proposal Proposal
	Reason   string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s %s rejected: %s", r.Proposal.Action, r.Proposal.Symbol, r.Reason)
}

// Fill is a terminal, immutable execution record.
type Fill struct {
	ID          string             `json:"id"`
	AgentID     string             `json:"agentId"`
	Symbol      string             `json:"symbol"`
	Name        string             `json:"name,omitempty"`
	Action      domain.TradeAction `json:"action"`
	ExecPrice   float64            `json:"execPrice"`
	Quantity    int64              `json:"quantity"`
	TotalAmount float64            `json:"totalAmount"`
	Status      OrderState         `json:"status"`
	StrategyTag string             `json:"strategyTag,omitempty"`
	Rationale   string             `json:"rationale,omitempty"`
	Confidence  float64            `json:"confidence,omitempty"`
	ExecutedAt  time.Time          `json:"executedAt"`
}

// Validate checks a fill before it is written to the ledger.
func (f Fill) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("fill is missing an id")
	}
	if f.Symbol == "" {
		return fmt.Errorf("fill is missing a symbol")
	}
	if f.Action != domain.ActionBuy && f.Action != domain.ActionSell {
		return fmt.Errorf("fill has invalid action %q", f.Action)
	}
	if f.Status != StateFilled && f.Status != StateRejected {
		return fmt.Errorf("fill has non-terminal status %q", f.Status)
	}
	if f.Status == StateFilled && (f.Quantity <= 0 || f.ExecPrice <= 0) {
		return fmt.Errorf("filled record needs positive quantity and price")
	}
	return nil
}
