// Package mockfeed provides the last-resort market data source: a seeded
// random-walk simulator over a fixed A-share universe. It never fails, so the
// aggregator and catalog cache always have a floor to land on when every real
// provider is down.
package mockfeed

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
)

// seedStock is one security of the built-in universe.
type seedStock struct {
	symbol     string
	name       string
	price      float64
	volatility float64
}

var seedUniverse = []seedStock{
	{"600519", "贵州茅台", 1650.00, 0.012},
	{"300750", "宁德时代", 180.50, 0.022},
	{"000001", "平安银行", 10.30, 0.008},
	{"601127", "赛力斯", 92.00, 0.035},
	{"601318", "中国平安", 42.50, 0.011},
	{"002594", "比亚迪", 210.20, 0.018},
	{"600036", "招商银行", 31.80, 0.009},
	{"600900", "长江电力", 24.50, 0.005},
	{"000858", "五粮液", 145.30, 0.015},
	{"603259", "药明康德", 52.40, 0.025},
	{"300059", "东方财富", 13.20, 0.028},
	{"601888", "中国中免", 78.60, 0.019},
	{"600276", "恒瑞医药", 45.10, 0.014},
	{"000333", "美的集团", 63.50, 0.012},
	{"601012", "隆基绿能", 18.90, 0.032},
}

// stockState is the evolving simulated state of one symbol.
type stockState struct {
	name       string
	base       float64
	price      float64
	volatility float64
	volume     float64
}

// Client simulates a quote provider with a per-symbol random walk.
type Client struct {
	mu     sync.Mutex
	rng    *rand.Rand
	state  map[string]*stockState
	order  []string // stable catalog ordering
	trends *marketdata.TrendBook
	log    zerolog.Logger
}

// NewClient creates a simulator. The same seed yields the same walk.
func NewClient(seed int64, trends *marketdata.TrendBook, log zerolog.Logger) *Client {
	c := &Client{
		rng:    rand.New(rand.NewSource(seed)),
		state:  make(map[string]*stockState),
		trends: trends,
		log:    log.With().Str("client", "mockfeed").Logger(),
	}
	for _, s := range seedUniverse {
		c.state[s.symbol] = &stockState{
			name:       s.name,
			base:       s.price,
			price:      s.price,
			volatility: s.volatility,
			volume:     float64(10000 + c.rng.Intn(990000)),
		}
		c.order = append(c.order, s.symbol)
	}
	return c
}

// Name identifies the provider.
func (c *Client) Name() string { return "mockfeed" }

// FetchCatalogPage pages over the simulated universe.
func (c *Client) FetchCatalogPage(ctx context.Context, page, pageSize int) ([]domain.CatalogEntry, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stepAllLocked()

	total := len(c.order)
	start := (page - 1) * pageSize
	if start >= total || start < 0 {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	now := time.Now()
	entries := make([]domain.CatalogEntry, 0, end-start)
	for _, symbol := range c.order[start:end] {
		s := c.state[symbol]
		entries = append(entries, domain.CatalogEntry{
			Symbol:      symbol,
			MarketID:    marketID(symbol),
			Name:        s.name,
			Price:       s.price,
			ChangePct:   (s.price - s.base) / s.base * 100,
			Volume:      s.volume,
			PrevClose:   s.base,
			Trend:       c.trends.Observe(symbol, s.price),
			LastUpdated: now,
		})
	}
	return entries, total, nil
}

// FetchQuotes steps the walk for the requested symbols. Unknown symbols get a
// fresh simulated entry so held positions always stay markable.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	quotes := make([]domain.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		s, ok := c.state[symbol]
		if !ok {
			s = c.spawnLocked(symbol)
		}
		c.stepLocked(s)

		quotes = append(quotes, domain.Quote{
			Symbol:      symbol,
			Name:        s.name,
			Price:       s.price,
			ChangePct:   (s.price - s.base) / s.base * 100,
			Volume:      s.volume,
			PrevClose:   s.base,
			Timestamp:   now,
			RecentTrend: c.trends.Observe(symbol, s.price),
		})
	}
	return quotes, nil
}

// spawnLocked creates simulated state for a symbol outside the seed universe.
// The base price derives from the symbol so it is stable across restarts.
func (c *Client) spawnLocked(symbol string) *stockState {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	base := 10 + float64(h.Sum32()%5000)/100 // 10.00 - 59.99

	s := &stockState{
		name:       "Stock-" + symbol,
		base:       base,
		price:      base,
		volatility: 0.02,
		volume:     float64(10000 + c.rng.Intn(90000)),
	}
	c.state[symbol] = s
	c.order = append(c.order, symbol)
	return s
}

func (c *Client) stepAllLocked() {
	for _, symbol := range c.order {
		c.stepLocked(c.state[symbol])
	}
}

// stepLocked advances one random-walk tick: price *= 1 + U(-vol, vol).
func (c *Client) stepLocked(s *stockState) {
	move := (c.rng.Float64() - 0.5) * 2 * s.volatility
	s.price *= 1 + move
	if s.price < 0.01 {
		s.price = 0.01
	}
	s.volume = float64(10000 + c.rng.Intn(990000))
}

func marketID(symbol string) int {
	if len(symbol) > 0 && symbol[0] == '6' {
		return 1
	}
	return 0
}
