// Package eastmoney provides the primary upstream market data client.
// It speaks the push2 quote API: paged catalog listing, per-symbol realtime
// quotes, and daily K-line history.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
)

const (
	clistPath    = "/api/qt/clist/get"
	realtimePath = "/api/qt/stock/get"
	klinePath    = "/api/qt/stock/kline/get"

	clistFields    = "f12,f13,f14,f2,f3,f4,f5,f6,f15,f16,f17,f18,f20,f21,f9,f23"
	realtimeFields = "f57,f58,f43,f60,f44,f45,f46,f47,f71,f168,f164"

	clistToken    = "bd1d9ddb04089700cf9c27f6f7426281"
	realtimeToken = "7eea3edcaed734bea9cbfc24409ed989"

	// Main boards of both exchanges plus the growth boards
	clistMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"
)

// Client for the push2 quote API
type Client struct {
	hosts       []string // equivalent mirrors, tried in order
	historyHost string
	client      *http.Client
	limiter     *rate.Limiter
	trends      *marketdata.TrendBook
	log         zerolog.Logger
}

// NewClient creates a new eastmoney client.
// trends is shared with other providers so a symbol keeps one trend series
// no matter which source resolved it.
func NewClient(trends *marketdata.TrendBook, log zerolog.Logger) *Client {
	return &Client{
		hosts: []string{
			"https://push2.eastmoney.com",
			"https://push2delay.eastmoney.com",
		},
		historyHost: "https://push2his.eastmoney.com",
		client:      &http.Client{Timeout: 10 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(5), 10),
		trends:      trends,
		log:         log.With().Str("client", "eastmoney").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "eastmoney" }

// clistResponse is the wire shape of clist/get. diff is a list on the first
// page and sometimes an object keyed by row index, so it stays raw here.
type clistResponse struct {
	Data *struct {
		Total int             `json:"total"`
		Diff  json.RawMessage `json:"diff"`
	} `json:"data"`
}

// FetchCatalogPage returns one page of the A-share master list and the total
// security count. Mirrors are tried in fixed order; a mirror that failed is
// not retried within the same call.
func (c *Client) FetchCatalogPage(ctx context.Context, page, pageSize int) ([]domain.CatalogEntry, int, error) {
	params := url.Values{
		"pn":     {strconv.Itoa(page)},
		"pz":     {strconv.Itoa(pageSize)},
		"po":     {"1"},
		"np":     {"1"},
		"ut":     {clistToken},
		"fltt":   {"2"},
		"invt":   {"2"},
		"fid":    {"f3"},
		"fs":     {clistMarkets},
		"fields": {clistFields},
	}

	var lastErr error
	for _, host := range c.hosts {
		body, err := c.get(ctx, host+clistPath, params)
		if err != nil {
			c.log.Warn().Err(err).Str("host", host).Msg("Catalog mirror failed, trying next")
			lastErr = err
			continue
		}

		var resp clistResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			lastErr = fmt.Errorf("failed to parse catalog response: %w", err)
			continue
		}
		if resp.Data == nil || len(resp.Data.Diff) == 0 {
			lastErr = fmt.Errorf("catalog response missing data.diff")
			continue
		}

		rows, err := decodeDiff(resp.Data.Diff)
		if err != nil {
			lastErr = err
			continue
		}

		now := time.Now()
		entries := make([]domain.CatalogEntry, 0, len(rows))
		for _, row := range rows {
			symbol, _ := row["f12"].(string)
			if symbol == "" {
				continue
			}
			name, _ := row["f14"].(string)
			entries = append(entries, domain.CatalogEntry{
				Symbol:      symbol,
				MarketID:    int(safeFloat(row["f13"])),
				Name:        name,
				Price:       safeFloat(row["f2"]),
				ChangePct:   safeFloat(row["f3"]),
				Volume:      safeFloat(row["f5"]),
				Amount:      safeFloat(row["f6"]),
				High:        safeFloat(row["f15"]),
				Low:         safeFloat(row["f16"]),
				Open:        safeFloat(row["f17"]),
				PrevClose:   safeFloat(row["f18"]),
				MarketCap:   safeFloat(row["f20"]),
				PE:          safeFloat(row["f9"]),
				PB:          safeFloat(row["f23"]),
				Trend:       c.trends.Observe(symbol, safeFloat(row["f2"])),
				LastUpdated: now,
			})
		}

		return entries, resp.Data.Total, nil
	}

	return nil, 0, fmt.Errorf("all catalog mirrors failed: %w", lastErr)
}

// FetchQuotes fetches realtime quotes symbol by symbol. Symbols that fail are
// absent from the result; the call errors only when nothing resolved.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	quotes := make([]domain.Quote, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		q, err := c.fetchQuote(ctx, symbol)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote fetch failed")
			lastErr = err
			continue
		}
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 && lastErr != nil {
		return nil, fmt.Errorf("no quotes resolved: %w", lastErr)
	}
	return quotes, nil
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	params := url.Values{
		"secid":  {secID(symbol)},
		"fields": {realtimeFields},
		"fltt":   {"2"},
		"invt":   {"2"},
		"ut":     {realtimeToken},
	}

	var lastErr error
	for _, host := range c.hosts {
		body, err := c.get(ctx, host+realtimePath, params)
		if err != nil {
			lastErr = err
			continue
		}

		var resp struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			lastErr = fmt.Errorf("failed to parse quote response: %w", err)
			continue
		}
		if resp.Data == nil {
			lastErr = fmt.Errorf("quote response missing data for %s", symbol)
			continue
		}

		// Price fields arrive scaled by 100
		price := safeFloat(resp.Data["f43"]) / 100
		prevClose := safeFloat(resp.Data["f60"]) / 100

		changePct := 0.0
		if prevClose > 0 {
			changePct = (price - prevClose) / prevClose * 100
		}

		code, _ := resp.Data["f57"].(string)
		if code == "" {
			code = symbol
		}
		name, _ := resp.Data["f58"].(string)

		return domain.Quote{
			Symbol:      code,
			Name:        name,
			Price:       price,
			ChangePct:   changePct,
			Volume:      safeFloat(resp.Data["f47"]),
			High:        safeFloat(resp.Data["f44"]) / 100,
			Low:         safeFloat(resp.Data["f45"]) / 100,
			Open:        safeFloat(resp.Data["f46"]) / 100,
			PrevClose:   prevClose,
			Timestamp:   time.Now(),
			RecentTrend: c.trends.Observe(code, price),
		}, nil
	}

	return domain.Quote{}, lastErr
}

// FetchKlines returns up to days most recent daily candles, forward-adjusted.
func (c *Client) FetchKlines(ctx context.Context, symbol string, days int) ([]domain.KlineBar, error) {
	params := url.Values{
		"secid": {secID(symbol)},
		"klt":   {"101"},
		"fqt":   {"1"},
		"beg":   {"0"},
		"end":   {"99999999"},
	}

	body, err := c.get(ctx, c.historyHost+klinePath, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data *struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse kline response: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("kline response missing data for %s", symbol)
	}

	bars := make([]domain.KlineBar, 0, len(resp.Data.Klines))
	for _, row := range resp.Data.Klines {
		bar, ok := parseKlineRow(row)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// get performs a rate-limited GET and returns the body for 200 responses.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0 Safari/537.36")
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return readAll(resp.Body)
}
