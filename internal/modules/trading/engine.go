package trading

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/modules/portfolio"
)

// Broker carries an admitted order to the market. A nil return is an ack; an
// error is a broker-side rejection. Implementations must respect ctx.
type Broker interface {
	Name() string
	Submit(ctx context.Context, order AdmissibleOrder) error
}

// SimulatedBroker acks every admitted order instantly.
type SimulatedBroker struct{}

func (SimulatedBroker) Name() string { return "simulated" }

func (SimulatedBroker) Submit(ctx context.Context, _ AdmissibleOrder) error { return ctx.Err() }

// RandomRejectBroker stands in for a real broker connection: each submission
// waits a bounded random interval and is rejected with a fixed probability.
type RandomRejectBroker struct {
	mu         sync.Mutex
	rng        *rand.Rand
	rejectProb float64
	minWait    time.Duration
	maxWait    time.Duration
}

// NewRandomRejectBroker creates the stand-in broker. The same seed produces
// the same ack/reject sequence.
func NewRandomRejectBroker(seed int64, rejectProb float64, minWait, maxWait time.Duration) *RandomRejectBroker {
	return &RandomRejectBroker{
		rng:        rand.New(rand.NewSource(seed)),
		rejectProb: rejectProb,
		minWait:    minWait,
		maxWait:    maxWait,
	}
}

func (b *RandomRejectBroker) Name() string { return "random_reject" }

func (b *RandomRejectBroker) Submit(ctx context.Context, order AdmissibleOrder) error {
	b.mu.Lock()
	wait := b.minWait
	if b.maxWait > b.minWait {
		wait += time.Duration(b.rng.Int63n(int64(b.maxWait - b.minWait)))
	}
	rejected := b.rng.Float64() < b.rejectProb
	b.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if rejected {
		return fmt.Errorf("order %s %s not accepted by venue", order.Proposal.Action, order.Proposal.Symbol)
	}
	return nil
}

// Engine drives an order through PROPOSED -> RISK_CHECKED -> SUBMITTED ->
// {FILLED | REJECTED}. Terminal outcomes are written to the fill ledger;
// rejected proposals come back as Rejection values, not errors.
type Engine struct {
	broker Broker
	fills  *FillRepository
	health *MarketHealth
	risk   config.RiskConfig
	log    zerolog.Logger
}

// NewEngine creates an execution engine.
func NewEngine(broker Broker, fills *FillRepository, health *MarketHealth, risk config.RiskConfig, log zerolog.Logger) *Engine {
	return &Engine{
		broker: broker,
		fills:  fills,
		health: health,
		risk:   risk,
		log:    log.With().Str("component", "execution_engine").Logger(),
	}
}

// Execute runs one proposal to a terminal state against the agent's ledger.
// While the market is unhealthy every submission is refused up front, before
// the risk policy ever runs.
func (e *Engine) Execute(ctx context.Context, ledger *portfolio.Ledger, p Proposal) (*Fill, *Rejection, error) {
	if !e.health.Healthy() {
		return nil, &Rejection{Proposal: p, Reason: "market data unhealthy, submissions suspended"}, nil
	}

	order, rejection := Evaluate(ledger.Snapshot(), p, e.risk)
	if rejection != nil {
		e.recordRejection(p, rejection.Reason)
		return nil, rejection, nil
	}

	if err := e.broker.Submit(ctx, *order); err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("broker submission cancelled: %w", ctx.Err())
		}
		e.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("Broker rejected order")
		rej := &Rejection{Proposal: p, Reason: fmt.Sprintf("broker rejection: %v", err)}
		e.recordRejection(p, rej.Reason)
		return nil, rej, nil
	}

	// The ledger re-validates cash and holdings at apply time; a failure
	// here means the snapshot went stale between check and fill
	if err := ledger.ApplyFill(p.Action, p.Symbol, p.Name, order.ExecPrice, order.Quantity); err != nil {
		rej := &Rejection{Proposal: p, Reason: fmt.Sprintf("ledger refused fill: %v", err)}
		e.recordRejection(p, rej.Reason)
		return nil, rej, nil
	}

	fill := Fill{
		ID:          uuid.New().String(),
		AgentID:     p.AgentID,
		Symbol:      p.Symbol,
		Name:        p.Name,
		Action:      p.Action,
		ExecPrice:   order.ExecPrice,
		Quantity:    order.Quantity,
		TotalAmount: order.ExecPrice * float64(order.Quantity),
		Status:      StateFilled,
		StrategyTag: p.StrategyTag,
		Rationale:   p.Rationale,
		Confidence:  p.Confidence,
		ExecutedAt:  time.Now(),
	}
	if err := e.fills.Create(fill); err != nil {
		// The position is live; losing the audit row is logged loudly but
		// must not undo the fill
		e.log.Error().Err(err).Str("fill_id", fill.ID).Msg("Failed to persist fill record")
	}

	e.log.Info().
		Str("agent", p.AgentID).
		Str("symbol", p.Symbol).
		Str("action", string(p.Action)).
		Int64("quantity", fill.Quantity).
		Float64("exec_price", fill.ExecPrice).
		Msg("Order filled")
	return &fill, nil, nil
}

func (e *Engine) recordRejection(p Proposal, reason string) {
	rec := Fill{
		ID:          uuid.New().String(),
		AgentID:     p.AgentID,
		Symbol:      p.Symbol,
		Name:        p.Name,
		Action:      p.Action,
		Status:      StateRejected,
		StrategyTag: p.StrategyTag,
		Rationale:   reason,
		Confidence:  p.Confidence,
		ExecutedAt:  time.Now(),
	}
	if err := e.fills.Create(rec); err != nil {
		e.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("Failed to persist rejection record")
	}
}
