package portfolio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/domain"
)

func TestApplyFill_BuyAveragesCostBasis(t *testing.T) {
	l := NewLedger("a1", 100000)

	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "贵州茅台", 100, 100))
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "贵州茅台", 200, 100))

	snap := l.Snapshot()
	assert.Equal(t, 100000.0-10000-20000, snap.Cash)
	require.Len(t, snap.Positions, 1)
	p := snap.Positions[0]
	assert.Equal(t, int64(200), p.Quantity)
	assert.InDelta(t, 150.0, p.AvgCost, 1e-9)
	assert.InDelta(t, 40000.0, p.MarketValue, 1e-9, "marked at last exec price")
}

func TestApplyFill_BuyInsufficientCash(t *testing.T) {
	l := NewLedger("a1", 1000)

	err := l.ApplyFill(domain.ActionBuy, "600519", "", 100, 100)
	require.Error(t, err)

	snap := l.Snapshot()
	assert.Equal(t, 1000.0, snap.Cash, "rejected fill leaves the ledger unchanged")
	assert.Empty(t, snap.Positions)
}

func TestApplyFill_SellFullPositionRemovesIt(t *testing.T) {
	l := NewLedger("a1", 50000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "000001", "平安银行", 10, 100))

	require.NoError(t, l.ApplyFill(domain.ActionSell, "000001", "", 12, 100))

	snap := l.Snapshot()
	assert.Empty(t, snap.Positions, "zero-quantity position must be removed, not kept")
	assert.InDelta(t, 50000.0-1000+1200, snap.Cash, 1e-9)
}

func TestApplyFill_PartialSellKeepsBasis(t *testing.T) {
	l := NewLedger("a1", 100000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "000001", "平安银行", 10, 400))

	require.NoError(t, l.ApplyFill(domain.ActionSell, "000001", "", 11, 100))

	snap := l.Snapshot()
	require.Len(t, snap.Positions, 1)
	p := snap.Positions[0]
	assert.Equal(t, int64(300), p.Quantity)
	assert.InDelta(t, 10.0, p.AvgCost, 1e-9, "selling never rewrites the cost basis")
}

func TestApplyFill_SellMoreThanHeld(t *testing.T) {
	l := NewLedger("a1", 10000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "000001", "", 10, 100))

	err := l.ApplyFill(domain.ActionSell, "000001", "", 10, 200)
	require.Error(t, err)

	snap := l.Snapshot()
	assert.Equal(t, int64(100), snap.Positions[0].Quantity)
}

func TestApplyFill_SellWithoutPosition(t *testing.T) {
	l := NewLedger("a1", 10000)
	require.Error(t, l.ApplyFill(domain.ActionSell, "600519", "", 100, 100))
}

func TestSnapshot_CarriesFrozenCash(t *testing.T) {
	l := NewLedger("a1", 100000)

	snap := l.Snapshot()
	assert.Zero(t, snap.FrozenCash, "nothing is ever reserved when fills settle instantly")
	assert.InDelta(t, snap.Cash+snap.FrozenCash+snap.MarketValue, snap.TotalEquity, 1e-9)

	snap.FrozenCash = 500
	restored := NewLedger("a1", 0)
	restored.Restore(snap)
	assert.Equal(t, 500.0, restored.Snapshot().FrozenCash)
}

func TestApplyFill_AppendsEquityPoint(t *testing.T) {
	l := NewLedger("a1", 100000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "", 100, 100))

	snap := l.Snapshot()
	require.Len(t, snap.EquityHistory, 1)
	assert.InDelta(t, 100000.0, snap.EquityHistory[0].Equity, 1e-9, "a fill moves cash into stock, equity unchanged")
}

func TestApplyQuoteUpdate_RemarksAndAppendsEquity(t *testing.T) {
	l := NewLedger("a1", 100000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "贵州茅台", 1600, 100))

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	l.ApplyQuoteUpdate([]domain.Quote{
		{Symbol: "600519", Price: 1650},
		{Symbol: "999999", Price: 5}, // not held, ignored
	}, now)

	snap := l.Snapshot()
	p := snap.Positions[0]
	assert.Equal(t, 1650.0, p.CurrentPrice)
	assert.InDelta(t, 5000.0, p.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 3.125, p.PnLPct, 1e-9)

	// one point from the fill, one from the quote refresh
	require.Len(t, snap.EquityHistory, 2)
	point := snap.EquityHistory[1]
	assert.True(t, point.Timestamp.Equal(now))
	assert.InDelta(t, 100000.0-160000+165000, point.Equity, 1e-9)
	assert.InDelta(t, snap.TotalEquity, point.Equity, 1e-9)
}

func TestApplyQuoteUpdate_ZeroPriceIgnored(t *testing.T) {
	l := NewLedger("a1", 100000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "", 1600, 100))

	l.ApplyQuoteUpdate([]domain.Quote{{Symbol: "600519", Price: 0}}, time.Now())

	snap := l.Snapshot()
	assert.Equal(t, 1600.0, snap.Positions[0].CurrentPrice, "a zero quote never re-marks a position")
}

func TestEquityHistory_Bounded(t *testing.T) {
	l := NewLedger("a1", 1000)
	for i := 0; i < maxEquityPoints+50; i++ {
		l.ApplyQuoteUpdate(nil, time.Now())
	}
	assert.Len(t, l.Snapshot().EquityHistory, maxEquityPoints)
}

func TestSnapshot_IsolatedFromLaterMutations(t *testing.T) {
	l := NewLedger("a1", 100000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "", 100, 100))

	snap := l.Snapshot()
	require.NoError(t, l.ApplyFill(domain.ActionSell, "600519", "", 110, 100))

	require.Len(t, snap.Positions, 1, "snapshot must not see fills applied after it was taken")
	assert.Equal(t, int64(100), snap.Positions[0].Quantity)
}

func TestSnapshot_ConcurrentReadersNeverTorn(t *testing.T) {
	l := NewLedger("a1", 1_000_000)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = l.ApplyFill(domain.ActionBuy, "600519", "", 100, 100)
			_ = l.ApplyFill(domain.ActionSell, "600519", "", 100, 100)
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := l.Snapshot()
			// Cash + holdings at cost must always equal the initial funding,
			// since every trade here is at the same price
			invested := 0.0
			for _, p := range snap.Positions {
				invested += p.AvgCost * float64(p.Quantity)
			}
			assert.InDelta(t, 1_000_000, snap.Cash+invested, 1e-6)
		}
	}()

	wg.Wait()
}

func TestRestore_RoundTrip(t *testing.T) {
	l := NewLedger("a1", 100000)
	require.NoError(t, l.ApplyFill(domain.ActionBuy, "600519", "贵州茅台", 1600, 100))
	l.ApplyQuoteUpdate([]domain.Quote{{Symbol: "600519", Price: 1650}}, time.Now())
	saved := l.Snapshot()

	restored := NewLedger("a1", 0)
	restored.Restore(saved)

	got := restored.Snapshot()
	assert.Equal(t, saved.Cash, got.Cash)
	assert.Equal(t, saved.Positions, got.Positions)
	assert.Equal(t, len(saved.EquityHistory), len(got.EquityHistory))
	assert.InDelta(t, saved.TotalEquity, got.TotalEquity, 1e-9)
}
