package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/clients/mockfeed"
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
	testutil "github.com/alphatrader/alphatrader/internal/testing"
)

type fakeOracle struct {
	decision domain.Decision
	calls    int
}

func (f *fakeOracle) Decide(ctx context.Context, req oracle.Request) domain.Decision {
	f.calls++
	d := f.decision
	d.Symbol = req.Quote.Symbol
	return d
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) FetchCatalogPage(context.Context, int, int) ([]domain.CatalogEntry, int, error) {
	return nil, 0, errors.New("down")
}
func (failingProvider) FetchQuotes(context.Context, []string) ([]domain.Quote, error) {
	return nil, errors.New("down")
}

type noHistory struct{}

func (noHistory) FetchKlines(context.Context, string, int) ([]domain.KlineBar, error) {
	return nil, errors.New("no history source")
}

type testRig struct {
	orch    *Orchestrator
	agents  *agents.Manager
	bus     *events.Bus
	health  *trading.MarketHealth
	oracle  *fakeOracle
	cleanup func()
}

func newRig(t *testing.T, provider marketdata.Provider, decision domain.Decision) *testRig {
	t.Helper()
	nop := zerolog.Nop()

	marketDB, cleanMarket := testutil.NewTestDB(t, "market")
	ledgerDB, cleanLedger := testutil.NewTestDB(t, "ledger")
	workDB, cleanWork := testutil.NewTestDB(t, "workspace")

	catalogs := marketdata.NewCatalogRepository(marketDB.Conn(), nop)
	mirror := marketdata.NewCatalogFile(t.TempDir(), nop)
	calendar := market_hours.NewSSECalendar()
	cache := marketdata.NewCatalogCache(catalogs, mirror, []marketdata.Provider{provider}, calendar, 5*time.Minute, nop)
	market := marketdata.NewService(
		cache,
		marketdata.NewAggregator([]marketdata.Provider{provider}, nop),
		catalogs,
		marketdata.NewHistoryRepository(marketDB.Conn(), nop),
		noHistory{},
		nop,
	)

	mgr := agents.NewManager(nop)
	bus := events.NewBus(nop)
	health := trading.NewMarketHealth(nop)
	risk := config.RiskConfig{MaxPositionPct: 0.30, MaxOrderPct: 0.20, SlippageBps: 0, LimitTolerancePct: 0.02}
	engine := trading.NewEngine(trading.SimulatedBroker{}, trading.NewFillRepository(ledgerDB.Conn(), nop), health, risk, nop)

	repo := workspace.NewRepository(workDB.Conn(), nop)
	saver := workspace.NewService(repo, func(string) workspace.Workspace {
		states, pools := mgr.Export()
		return workspace.Workspace{Agents: states, Pools: pools}
	}, nop)

	fo := &fakeOracle{decision: decision}
	orch := New(Deps{
		Market:   market,
		Agents:   mgr,
		Oracle:   fo,
		Engine:   engine,
		Health:   health,
		Calendar: calendar,
		Bus:      bus,
		Notifier: notify.New(notify.Config{}, nop),
		Saver:    saver,
		Risk:     risk,
		Log:      nop,
	})

	return &testRig{
		orch:   orch,
		agents: mgr,
		bus:    bus,
		health: health,
		oracle: fo,
		cleanup: func() {
			saver.Close()
			cleanWork()
			cleanLedger()
			cleanMarket()
		},
	}
}

func TestRecordFetch_TripsAndClearsHealthWithEvents(t *testing.T) {
	rig := newRig(t, failingProvider{}, domain.Hold("", ""))
	defer rig.cleanup()

	var flips []bool
	rig.bus.Subscribe(events.MarketHealthChanged, func(e *events.Event) {
		flips = append(flips, e.Data["healthy"].(bool))
	})

	rig.orch.recordFetch(errors.New("down"))
	rig.orch.recordFetch(errors.New("down"))
	assert.True(t, rig.health.Healthy())
	assert.Empty(t, flips)

	rig.orch.recordFetch(errors.New("down"))
	assert.False(t, rig.health.Healthy())
	require.Len(t, flips, 1)
	assert.False(t, flips[0])

	rig.orch.recordFetch(nil)
	assert.True(t, rig.health.Healthy())
	require.Len(t, flips, 2)
	assert.True(t, flips[1])
}

func TestRunAgentCycle_BuyDecisionFillsAndEmits(t *testing.T) {
	feed := mockfeed.NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())
	rig := newRig(t, feed, domain.Decision{
		Action:               domain.ActionBuy,
		Confidence:           0.9,
		SuggestedQuantityPct: 50,
		StrategyLabel:        "momentum",
		Rationale:            "test",
	})
	defer rig.cleanup()

	pool, err := rig.agents.CreatePool("watch", []string{"600519"})
	require.NoError(t, err)
	agent, err := rig.agents.CreateAgent("alpha", 1_000_000, pool.ID)
	require.NoError(t, err)

	var trades []*events.Event
	rig.bus.Subscribe(events.TradeExecuted, func(e *events.Event) { trades = append(trades, e) })

	rig.orch.runAgentCycle(agent)

	assert.Equal(t, 1, rig.oracle.calls)
	snap := agent.Ledger.Snapshot()
	require.Len(t, snap.Positions, 1, "BUY decision must land in the ledger")
	assert.Equal(t, "600519", snap.Positions[0].Symbol)
	assert.Less(t, snap.Cash, 1_000_000.0)

	require.Len(t, trades, 1)
	assert.Equal(t, agent.ID, trades[0].Data["agent_id"])
}

func TestRunAgentCycle_HoldDecisionDoesNothing(t *testing.T) {
	feed := mockfeed.NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())
	rig := newRig(t, feed, domain.Hold("", "no edge"))
	defer rig.cleanup()

	pool, err := rig.agents.CreatePool("watch", []string{"600519"})
	require.NoError(t, err)
	agent, err := rig.agents.CreateAgent("alpha", 1_000_000, pool.ID)
	require.NoError(t, err)

	rig.orch.runAgentCycle(agent)

	assert.Equal(t, 1, rig.oracle.calls)
	assert.Empty(t, agent.Ledger.Snapshot().Positions)
	assert.Equal(t, 1_000_000.0, agent.Ledger.Cash())
}

func TestRunAgentCycle_FetchFailureSkipsOracle(t *testing.T) {
	rig := newRig(t, failingProvider{}, domain.Decision{Action: domain.ActionBuy, SuggestedQuantityPct: 10})
	defer rig.cleanup()

	pool, err := rig.agents.CreatePool("watch", []string{"600519"})
	require.NoError(t, err)
	agent, err := rig.agents.CreateAgent("alpha", 1_000_000, pool.ID)
	require.NoError(t, err)

	rig.orch.runAgentCycle(agent)
	rig.orch.runAgentCycle(agent)
	rig.orch.runAgentCycle(agent)

	assert.Zero(t, rig.oracle.calls, "no quotes, no decisions")
	assert.False(t, rig.health.Healthy(), "three consecutive failures trip the flag")
}

func TestRunAgentCycle_RejectionEmitsEvent(t *testing.T) {
	feed := mockfeed.NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())
	// SELL with no position always rejects
	rig := newRig(t, feed, domain.Decision{
		Action:               domain.ActionSell,
		SuggestedQuantityPct: 100,
	})
	defer rig.cleanup()

	pool, err := rig.agents.CreatePool("watch", []string{"600519"})
	require.NoError(t, err)
	agent, err := rig.agents.CreateAgent("alpha", 1_000_000, pool.ID)
	require.NoError(t, err)

	var rejections []*events.Event
	rig.bus.Subscribe(events.OrderRejected, func(e *events.Event) { rejections = append(rejections, e) })

	rig.orch.runAgentCycle(agent)

	require.Len(t, rejections, 1)
	assert.Equal(t, "600519", rejections[0].Data["symbol"])
	assert.Empty(t, agent.Ledger.Snapshot().Positions)
}

func TestRunAgentCycle_PoollessAgentScansCatalog(t *testing.T) {
	feed := mockfeed.NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())
	rig := newRig(t, feed, domain.Hold("", "watching"))
	defer rig.cleanup()

	agent, err := rig.agents.CreateAgent("alpha", 1_000_000, "")
	require.NoError(t, err)

	rig.orch.runAgentCycle(agent)

	assert.Equal(t, maxOracleSymbolsPerCycle, rig.oracle.calls,
		"an agent without a pool trades the visible catalog page")
}

func TestRunAgentCycle_SellCoversHeldSymbolOutsidePool(t *testing.T) {
	feed := mockfeed.NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())
	rig := newRig(t, feed, domain.Decision{
		Action:               domain.ActionSell,
		Confidence:           0.8,
		SuggestedQuantityPct: 100,
		StrategyLabel:        "exit",
		Rationale:            "test",
	})
	defer rig.cleanup()

	pool, err := rig.agents.CreatePool("watch", []string{"000001"})
	require.NoError(t, err)
	agent, err := rig.agents.CreateAgent("alpha", 1_000_000, pool.ID)
	require.NoError(t, err)
	require.NoError(t, agent.Ledger.ApplyFill(domain.ActionBuy, "600519", "贵州茅台", 1650, 100))

	rig.orch.runAgentCycle(agent)

	assert.Equal(t, 2, rig.oracle.calls, "pool symbol and held symbol both analyzed")
	assert.Empty(t, agent.Ledger.Snapshot().Positions,
		"a position no longer in the pool must still be sellable")
}

func TestPickSymbols_BoundsAndRotation(t *testing.T) {
	rig := newRig(t, failingProvider{}, domain.Hold("", ""))
	defer rig.cleanup()

	symbols := []string{"a", "b", "c", "d", "e", "f"}
	picked := rig.orch.pickSymbols(symbols, 4)
	assert.Len(t, picked, 4)
	for _, s := range picked {
		assert.Contains(t, symbols, s)
	}

	small := []string{"a", "b"}
	assert.Equal(t, small, rig.orch.pickSymbols(small, 4))
}
