// Package orchestrator runs the trading control loops: a slow market cycle
// that keeps the catalog and position marks current, and a fast pool cycle
// that fans decisions out to the strategy oracle and routes them into the
// execution engine.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/clients/oracle"
	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/events"
	"github.com/alphatrader/alphatrader/internal/modules/agents"
	"github.com/alphatrader/alphatrader/internal/modules/market_hours"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
	"github.com/alphatrader/alphatrader/internal/modules/trading"
	"github.com/alphatrader/alphatrader/internal/modules/workspace"
	"github.com/alphatrader/alphatrader/internal/notify"
	"github.com/alphatrader/alphatrader/internal/scheduler"
)

const (
	// slow cycle keeps catalog and equity marks current
	marketCycleSchedule = "@every 60s"

	// fast cycle sleeps a jittered interval between pool scans
	poolCycleMinWait = 5 * time.Second
	poolCycleMaxWait = 15 * time.Second

	// per-cycle bound on oracle fan-out per agent
	maxOracleSymbolsPerCycle = 4

	// agents without a pool scan this many symbols off the top of the catalog
	marketScanSize = 100

	cycleTimeout = 45 * time.Second

	defaultUserID = "default"
)

// DecisionProvider is the strategy oracle surface the orchestrator consumes.
type DecisionProvider interface {
	Decide(ctx context.Context, req oracle.Request) domain.Decision
}

// Orchestrator coordinates the periodic tasks. Tasks share state only
// through the market data service, the agents' ledgers and the market
// health flag.
type Orchestrator struct {
	market   *marketdata.Service
	agents   *agents.Manager
	oracle   DecisionProvider
	engine   *trading.Engine
	health   *trading.MarketHealth
	calendar *market_hours.Calendar
	bus      *events.Bus
	notifier *notify.Notifier
	saver    *workspace.Service
	risk     config.RiskConfig
	sched    *scheduler.Scheduler
	log      zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	stop chan struct{}
	wg   sync.WaitGroup
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Market   *marketdata.Service
	Agents   *agents.Manager
	Oracle   DecisionProvider
	Engine   *trading.Engine
	Health   *trading.MarketHealth
	Calendar *market_hours.Calendar
	Bus      *events.Bus
	Notifier *notify.Notifier
	Saver    *workspace.Service
	Risk     config.RiskConfig
	Log      zerolog.Logger
}

// New creates the orchestrator.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		market:   d.Market,
		agents:   d.Agents,
		oracle:   d.Oracle,
		engine:   d.Engine,
		health:   d.Health,
		calendar: d.Calendar,
		bus:      d.Bus,
		notifier: d.Notifier,
		saver:    d.Saver,
		risk:     d.Risk,
		sched:    scheduler.New(d.Log),
		log:      d.Log.With().Str("component", "orchestrator").Logger(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:     make(chan struct{}),
	}
}

type jobFunc struct {
	name string
	fn   func() error
}

func (j jobFunc) Name() string { return j.name }
func (j jobFunc) Run() error   { return j.fn() }

// Start launches the periodic loops.
func (o *Orchestrator) Start() error {
	if err := o.sched.AddJob(marketCycleSchedule, jobFunc{name: "market_cycle", fn: o.MarketCycle}); err != nil {
		return err
	}
	o.sched.Start()

	o.wg.Add(1)
	go o.poolLoop()

	o.log.Info().Msg("Trading orchestrator started")
	return nil
}

// Stop halts both loops and waits for in-flight cycles to finish. An
// admitted fill is never abandoned mid-apply.
func (o *Orchestrator) Stop() {
	close(o.stop)
	o.sched.Stop()
	o.wg.Wait()
	o.log.Info().Msg("Trading orchestrator stopped")
}

// MarketCycle is the slow loop: keep the catalog current and re-mark every
// agent's held positions. Catalog browsing works around the clock; quote
// refreshes only run while a session is open.
func (o *Orchestrator) MarketCycle() error {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	page, err := o.market.Catalog(ctx, 1, 100, "")
	if err != nil {
		o.recordFetch(err)
		return err
	}
	o.recordFetch(nil)
	if page.Tier == "rebuild" {
		o.bus.EmitTyped(events.CatalogRebuilt, "orchestrator", &events.CatalogRebuiltData{
			Entries: page.Total,
			Source:  page.Tier,
		})
	}

	if !o.calendar.IsSessionOpen(time.Now()) {
		return nil
	}
	return o.refreshPositions(ctx)
}

// refreshPositions fetches quotes for every held symbol and re-marks each
// enabled agent's ledger.
func (o *Orchestrator) refreshPositions(ctx context.Context) error {
	enabled := o.agents.EnabledAgents()
	held := make(map[string]bool)
	for _, a := range enabled {
		for _, s := range a.Ledger.HeldSymbols() {
			held[s] = true
		}
	}
	if len(held) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(held))
	for s := range held {
		symbols = append(symbols, s)
	}

	quotes, err := o.market.Quotes(ctx, symbols)
	if err != nil {
		o.recordFetch(err)
		return err
	}
	o.recordFetch(nil)

	now := time.Now()
	for _, a := range enabled {
		a.Ledger.ApplyQuoteUpdate(quotes, now)
	}

	o.bus.EmitTyped(events.QuoteUpdated, "orchestrator", &events.QuoteUpdatedData{Symbols: len(quotes)})
	o.saver.RequestSave(defaultUserID)
	return nil
}

// poolLoop is the fast loop: scan each enabled agent's pool at a jittered
// interval so concurrent deployments don't hammer providers in lockstep.
func (o *Orchestrator) poolLoop() {
	defer o.wg.Done()

	for {
		timer := time.NewTimer(o.jitteredWait())
		select {
		case <-o.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		o.PoolCycle()
	}
}

func (o *Orchestrator) jitteredWait() time.Duration {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return poolCycleMinWait + time.Duration(o.rng.Int63n(int64(poolCycleMaxWait-poolCycleMinWait)))
}

// PoolCycle runs one decision fan-out over every enabled agent's pool.
func (o *Orchestrator) PoolCycle() {
	if !o.calendar.IsSessionOpen(time.Now()) {
		return
	}

	for _, agent := range o.agents.EnabledAgents() {
		select {
		case <-o.stop:
			return
		default:
		}
		o.runAgentCycle(agent)
	}
}

// runAgentCycle analyzes one agent's symbols in order. Decisions are
// executed as they arrive, so fills within one agent keep decision order.
func (o *Orchestrator) runAgentCycle(agent *agents.Agent) {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	universe := o.symbolsForAgent(ctx, agent)
	if len(universe) == 0 {
		return
	}

	symbols := o.pickSymbols(universe, maxOracleSymbolsPerCycle)

	quotes, err := o.market.Quotes(ctx, symbols)
	if err != nil {
		o.recordFetch(err)
		return
	}
	o.recordFetch(nil)
	agent.Ledger.ApplyQuoteUpdate(quotes, time.Now())

	// Quote fetching above still ran so a recovery can clear the flag, but
	// no decisions are solicited while the market is unhealthy
	if !o.health.Healthy() {
		return
	}

	for _, quote := range quotes {
		indicators, klines, ierr := o.market.Indicators(ctx, quote.Symbol)
		if ierr != nil {
			o.log.Debug().Err(ierr).Str("symbol", quote.Symbol).Msg("No indicator context for decision")
		}

		decision := o.oracle.Decide(ctx, oracle.Request{
			Quote:      quote,
			Portfolio:  agent.Ledger.Snapshot(),
			Indicators: indicators,
			Klines:     klines,
			Risk:       o.risk,
		})

		o.bus.EmitTyped(events.DecisionReceived, "orchestrator", &events.DecisionReceivedData{
			AgentID:    agent.ID,
			Symbol:     quote.Symbol,
			Action:     string(decision.Action),
			Confidence: decision.Confidence,
			Strategy:   decision.StrategyLabel,
		})

		if decision.Action == domain.ActionHold {
			continue
		}
		o.executeDecision(ctx, agent, quote, decision)
	}
}

// symbolsForAgent resolves the universe one cycle considers. Pool-bound
// agents scan their pool; agents without a pool scan the visible catalog
// page. Held symbols join the set either way, so an open position can still
// receive a SELL decision after it leaves the watch universe.
func (o *Orchestrator) symbolsForAgent(ctx context.Context, agent *agents.Agent) []string {
	var base []string
	if pool, ok := o.agents.Pool(agent.PoolID); ok {
		base = pool.Symbols
	} else {
		page, err := o.market.Catalog(ctx, 1, marketScanSize, "")
		if err != nil {
			o.recordFetch(err)
			o.log.Warn().Err(err).Str("agent", agent.ID).Msg("Catalog scan failed, falling back to held symbols")
		} else {
			o.recordFetch(nil)
			base = make([]string, 0, len(page.Entries))
			for _, e := range page.Entries {
				base = append(base, e.Symbol)
			}
		}
	}

	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base))
	for _, group := range [][]string{base, agent.Ledger.HeldSymbols()} {
		for _, s := range group {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) executeDecision(ctx context.Context, agent *agents.Agent, quote domain.Quote, decision domain.Decision) {
	proposal := trading.Proposal{
		AgentID:      agent.ID,
		Symbol:       quote.Symbol,
		Name:         quote.Name,
		Action:       decision.Action,
		Price:        quote.Price,
		RequestedPct: decision.SuggestedQuantityPct,
		Confidence:   decision.Confidence,
		StrategyTag:  decision.StrategyLabel,
		Rationale:    decision.Rationale,
	}

	fill, rejection, err := o.engine.Execute(ctx, agent.Ledger, proposal)
	if err != nil {
		o.log.Warn().Err(err).Str("agent", agent.ID).Str("symbol", quote.Symbol).Msg("Execution aborted")
		return
	}
	if rejection != nil {
		o.bus.EmitTyped(events.OrderRejected, "orchestrator", &events.OrderRejectedData{
			AgentID: agent.ID,
			Symbol:  quote.Symbol,
			Action:  string(decision.Action),
			Reason:  rejection.Reason,
		})
		return
	}

	o.bus.EmitTyped(events.TradeExecuted, "orchestrator", &events.TradeExecutedData{
		AgentID:   agent.ID,
		Symbol:    fill.Symbol,
		Action:    string(fill.Action),
		Quantity:  fill.Quantity,
		ExecPrice: fill.ExecPrice,
		FillID:    fill.ID,
	})
	o.notifier.NotifyFill(*fill)
	o.saver.RequestSave(defaultUserID)
}

// pickSymbols bounds one cycle's fan-out, rotating through the pool by
// random offset so every symbol gets visited across cycles.
func (o *Orchestrator) pickSymbols(symbols []string, max int) []string {
	if len(symbols) <= max {
		return symbols
	}
	o.rngMu.Lock()
	start := o.rng.Intn(len(symbols))
	o.rngMu.Unlock()

	out := make([]string, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, symbols[(start+i)%len(symbols)])
	}
	return out
}

// recordFetch reports one data-fetch outcome to the health tracker and
// emits an event when the flag flips in either direction.
func (o *Orchestrator) recordFetch(err error) {
	before := o.health.Healthy()
	if err != nil {
		o.health.RecordFailure()
	} else {
		o.health.RecordSuccess()
	}
	after := o.health.Healthy()

	if before != after {
		o.bus.EmitTyped(events.MarketHealthChanged, "orchestrator", &events.MarketHealthChangedData{Healthy: after})
	}
}
