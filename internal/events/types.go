// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	QuoteUpdated        EventType = "QUOTE_UPDATED"
	CatalogRebuilt      EventType = "CATALOG_REBUILT"
	TradeExecuted       EventType = "TRADE_EXECUTED"
	OrderRejected       EventType = "ORDER_REJECTED"
	MarketHealthChanged EventType = "MARKET_HEALTH_CHANGED"
	AgentUpdated        EventType = "AGENT_UPDATED"
	DecisionReceived    EventType = "DECISION_RECEIVED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// Event represents a system event with its payload.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
