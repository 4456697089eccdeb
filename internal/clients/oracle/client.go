// Package oracle talks to the external strategy oracle, an OpenAI-compatible
// chat completions endpoint. The oracle is advisory and unreliable by
// contract: any transport error, timeout or malformed answer fails closed to
// a HOLD decision, never to an exception.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
	"github.com/alphatrader/alphatrader/internal/modules/portfolio"
)

// requestTimeout bounds one oracle round trip. The orchestrator treats a
// timeout like any other failure: HOLD.
const requestTimeout = 45 * time.Second

// Request is everything the oracle sees for one symbol.
type Request struct {
	Quote      domain.Quote            `json:"quote"`
	Portfolio  portfolio.Snapshot      `json:"portfolio"`
	Indicators marketdata.IndicatorSet `json:"indicators"`
	Klines     []domain.KlineBar       `json:"klines,omitempty"`
	Risk       config.RiskConfig       `json:"risk"`
}

// Client calls the strategy oracle.
type Client struct {
	http   *resty.Client
	model  string
	locale string
	log    zerolog.Logger
}

// NewClient creates an oracle client for an OpenAI-compatible endpoint.
func NewClient(endpoint, apiKey, model, locale string, log zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		http.SetAuthToken(apiKey)
	}

	return &Client{
		http:   http,
		model:  model,
		locale: locale,
		log:    log.With().Str("client", "oracle").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Decide asks the oracle for a trading decision on req.Quote.Symbol.
// It always returns a usable decision; failures come back as HOLD.
func (c *Client) Decide(ctx context.Context, req Request) domain.Decision {
	symbol := req.Quote.Symbol

	contextJSON, err := json.Marshal(req)
	if err != nil {
		return domain.Hold(symbol, "failed to encode oracle context")
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt()},
			{Role: "user", Content: string(contextJSON)},
		},
		Temperature: 0.3,
	}

	var parsed chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&parsed).
		Post("/v1/chat/completions")
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Oracle request failed")
		return domain.Hold(symbol, "oracle unreachable")
	}
	if resp.IsError() {
		c.log.Warn().Int("status", resp.StatusCode()).Str("symbol", symbol).Msg("Oracle returned error status")
		return domain.Hold(symbol, fmt.Sprintf("oracle status %d", resp.StatusCode()))
	}
	if parsed.Error != nil {
		return domain.Hold(symbol, "oracle error: "+parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return domain.Hold(symbol, "oracle returned no choices")
	}

	decision, err := parseDecision(parsed.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Oracle answer unparseable")
		return domain.Hold(symbol, "malformed oracle answer")
	}

	decision.Symbol = symbol
	normalize(&decision)
	return decision
}

func (c *Client) systemPrompt() string {
	if c.locale == "zh" {
		return "你是一名A股量化交易策略师。根据用户提供的行情、技术指标和持仓数据,给出交易决策。" +
			"只回复一个JSON对象,不要输出其他内容,格式:" +
			`{"action":"BUY|SELL|HOLD","confidence":0.0到1.0,"suggestedQuantityPct":0到100,"strategyName":"策略名","reasoning":"理由"}`
	}
	return "You are an A-share quantitative trading strategist. Given the quote, indicators and portfolio " +
		"the user provides, answer with exactly one JSON object and nothing else: " +
		`{"action":"BUY|SELL|HOLD","confidence":0.0-1.0,"suggestedQuantityPct":0-100,"strategyName":"...","reasoning":"..."}`
}

// parseDecision extracts the first top-level JSON object from the oracle's
// answer. Models wrap answers in prose or code fences often enough that a
// plain Unmarshal of the whole content is not good enough.
func parseDecision(content string) (domain.Decision, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return domain.Decision{}, err
	}

	var d domain.Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return domain.Decision{}, fmt.Errorf("failed to decode decision: %w", err)
	}

	switch d.Action {
	case domain.ActionBuy, domain.ActionSell, domain.ActionHold:
	default:
		return domain.Decision{}, fmt.Errorf("unknown action %q", d.Action)
	}
	return d, nil
}

// extractJSONObject returns the first brace-balanced object in s, ignoring
// braces inside JSON strings.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in oracle answer")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in oracle answer")
}

func normalize(d *domain.Decision) {
	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	if d.SuggestedQuantityPct < 0 {
		d.SuggestedQuantityPct = 0
	}
	if d.SuggestedQuantityPct > 100 {
		d.SuggestedQuantityPct = 100
	}
}
