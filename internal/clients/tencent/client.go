// Package tencent provides the secondary quote source. The qt feed serves
// batched realtime quotes as one JavaScript assignment per symbol; it has no
// catalog listing, so this provider only participates in quote aggregation.
package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
)

// qt feed field indices within one ~-separated record
const (
	fieldName      = 1
	fieldCode      = 2
	fieldPrice     = 3
	fieldPrevClose = 4
	fieldOpen      = 5
	fieldChangePct = 32
	fieldHigh      = 33
	fieldLow       = 34
	fieldVolume    = 36
	fieldAmount    = 37
)

// Client for the qt batch quote feed
type Client struct {
	hosts   []string
	client  *http.Client
	limiter *rate.Limiter
	trends  *marketdata.TrendBook
	log     zerolog.Logger
}

// NewClient creates a new tencent quote client
func NewClient(trends *marketdata.TrendBook, log zerolog.Logger) *Client {
	return &Client{
		hosts: []string{
			"https://qt.gtimg.cn",
			"https://web.sqt.gtimg.cn",
		},
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		trends:  trends,
		log:     log.With().Str("client", "tencent").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "tencent" }

// FetchCatalogPage is unsupported: the qt feed has no listing endpoint.
func (c *Client) FetchCatalogPage(ctx context.Context, page, pageSize int) ([]domain.CatalogEntry, int, error) {
	return nil, 0, fmt.Errorf("tencent provider has no catalog endpoint")
}

// FetchQuotes fetches all requested symbols in a single batched call.
// Mirrors are tried in fixed order, each at most once per call.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(symbols))
	for i, s := range symbols {
		prefixed[i] = qtSymbol(s)
	}
	query := "/q=" + strings.Join(prefixed, ",")

	var lastErr error
	for _, host := range c.hosts {
		body, err := c.get(ctx, host+query)
		if err != nil {
			c.log.Warn().Err(err).Str("host", host).Msg("Quote mirror failed, trying next")
			lastErr = err
			continue
		}

		quotes := c.parseBatch(string(body))
		if len(quotes) == 0 {
			lastErr = fmt.Errorf("no parseable records in qt response")
			continue
		}
		return quotes, nil
	}

	return nil, fmt.Errorf("all quote mirrors failed: %w", lastErr)
}

// parseBatch parses `v_sh600519="1~name~600519~...";` lines into quotes.
// Records that fail to parse are skipped individually.
func (c *Client) parseBatch(body string) []domain.Quote {
	now := time.Now()
	var quotes []domain.Quote

	for _, line := range strings.Split(body, ";") {
		line = strings.TrimSpace(line)
		start := strings.Index(line, `"`)
		end := strings.LastIndex(line, `"`)
		if start < 0 || end <= start {
			continue
		}

		parts := strings.Split(line[start+1:end], "~")
		if len(parts) <= fieldAmount {
			continue
		}

		symbol := strings.TrimSpace(parts[fieldCode])
		if symbol == "" {
			continue
		}

		price := parseFloat(parts[fieldPrice])

		// The feed is GBK-encoded; a name that didn't survive as UTF-8 is
		// dropped here and filled from the catalog instead.
		name := parts[fieldName]
		if !utf8.ValidString(name) {
			name = ""
		}

		quotes = append(quotes, domain.Quote{
			Symbol:      symbol,
			Name:        name,
			Price:       price,
			ChangePct:   parseFloat(parts[fieldChangePct]),
			Volume:      parseFloat(parts[fieldVolume]),
			Amount:      parseFloat(parts[fieldAmount]),
			High:        parseFloat(parts[fieldHigh]),
			Low:         parseFloat(parts[fieldLow]),
			Open:        parseFloat(parts[fieldOpen]),
			PrevClose:   parseFloat(parts[fieldPrevClose]),
			Timestamp:   now,
			RecentTrend: c.trends.Observe(symbol, price),
		})
	}

	return quotes
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://gu.qq.com/")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// qtSymbol prefixes a 6-digit code with its exchange: sh for Shanghai
// (codes starting with 6), sz otherwise.
func qtSymbol(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

// parseFloat is the safe coercion for qt fields: blank or malformed becomes 0.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
