package trading

import (
	"fmt"
	"math"

	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/portfolio"
)

// lotSize is the minimum tradable unit for this market.
const lotSize = 100

// Evaluate runs a proposal through every risk gate against a ledger
// snapshot. It is a pure function: the same snapshot and proposal always
// produce the same verdict, and nothing is mutated. Exactly one of the two
// results is non-nil.
func Evaluate(snap portfolio.Snapshot, p Proposal, cfg config.RiskConfig) (*AdmissibleOrder, *Rejection) {
	if p.Price <= 0 {
		return nil, &Rejection{Proposal: p, Reason: "no usable reference price"}
	}

	switch p.Action {
	case domain.ActionBuy:
		return evaluateBuy(snap, p, cfg)
	case domain.ActionSell:
		return evaluateSell(snap, p, cfg)
	default:
		return nil, &Rejection{Proposal: p, Reason: fmt.Sprintf("action %q is not tradable", p.Action)}
	}
}

func evaluateBuy(snap portfolio.Snapshot, p Proposal, cfg config.RiskConfig) (*AdmissibleOrder, *Rejection) {
	equity := snap.TotalEquity
	maxPositionValue := equity * cfg.MaxPositionPct
	maxOrderValue := equity * cfg.MaxOrderPct

	headroom := maxPositionValue - snap.PositionValue(p.Symbol)
	if headroom <= 0 {
		return nil, &Rejection{Proposal: p, Reason: fmt.Sprintf(
			"position limit reached: holding %.2f of max %.2f", snap.PositionValue(p.Symbol), maxPositionValue)}
	}

	requested := snap.Cash * p.RequestedPct / 100
	spend := math.Min(math.Min(requested, maxOrderValue), math.Min(headroom, snap.Cash))
	if spend <= 0 {
		return nil, &Rejection{Proposal: p, Reason: "no admissible spend"}
	}

	execPrice, rej := slippageGate(p, cfg, +1)
	if rej != nil {
		return nil, rej
	}

	quantity := int64(math.Floor(spend/execPrice/lotSize)) * lotSize
	if quantity < lotSize {
		return nil, &Rejection{Proposal: p, Reason: fmt.Sprintf(
			"admissible spend %.2f buys less than one lot at %.2f", spend, execPrice)}
	}

	return &AdmissibleOrder{Proposal: p, Quantity: quantity, ExecPrice: execPrice}, nil
}

func evaluateSell(snap portfolio.Snapshot, p Proposal, cfg config.RiskConfig) (*AdmissibleOrder, *Rejection) {
	pos := snap.Position(p.Symbol)
	if pos == nil || pos.Quantity <= 0 {
		return nil, &Rejection{Proposal: p, Reason: "no position to sell"}
	}

	execPrice, rej := slippageGate(p, cfg, -1)
	if rej != nil {
		return nil, rej
	}

	quantity := int64(math.Floor(float64(pos.Quantity) * p.RequestedPct / 100))
	if quantity == 0 {
		// Any sell intent against a live position moves at least one lot
		quantity = lotSize
	}
	if quantity > pos.Quantity {
		quantity = pos.Quantity
	}

	return &AdmissibleOrder{Proposal: p, Quantity: quantity, ExecPrice: execPrice}, nil
}

// slippageGate models execution price drift and enforces the hard tolerance:
// an order whose drift exceeds the limit is rejected outright, never clamped.
func slippageGate(p Proposal, cfg config.RiskConfig, direction float64) (float64, *Rejection) {
	execPrice := p.Price * (1 + direction*float64(cfg.SlippageBps)/10000)
	drift := math.Abs(execPrice-p.Price) / p.Price
	if drift > cfg.LimitTolerancePct {
		return 0, &Rejection{Proposal: p, Reason: fmt.Sprintf(
			"price drift %.4f exceeds tolerance %.4f", drift, cfg.LimitTolerancePct)}
	}
	return execPrice, nil
}
