package events

// EventData is the interface that all typed event payloads implement.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	AgentID   string  `json:"agent_id"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Quantity  int64   `json:"quantity"`
	ExecPrice float64 `json:"exec_price"`
	FillID    string  `json:"fill_id,omitempty"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// OrderRejectedData contains data for OrderRejected events
type OrderRejectedData struct {
	AgentID string `json:"agent_id"`
	Symbol  string `json:"symbol"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

// EventType returns the event type for OrderRejectedData
func (d *OrderRejectedData) EventType() EventType {
	return OrderRejected
}

// QuoteUpdatedData contains data for QuoteUpdated events
type QuoteUpdatedData struct {
	Symbols int    `json:"symbols"`
	Source  string `json:"source,omitempty"`
}

// EventType returns the event type for QuoteUpdatedData
func (d *QuoteUpdatedData) EventType() EventType {
	return QuoteUpdated
}

// CatalogRebuiltData contains data for CatalogRebuilt events
type CatalogRebuiltData struct {
	Entries int    `json:"entries"`
	Source  string `json:"source"`
}

// EventType returns the event type for CatalogRebuiltData
func (d *CatalogRebuiltData) EventType() EventType {
	return CatalogRebuilt
}

// MarketHealthChangedData contains data for MarketHealthChanged events
type MarketHealthChangedData struct {
	Healthy bool `json:"healthy"`
}

// EventType returns the event type for MarketHealthChangedData
func (d *MarketHealthChangedData) EventType() EventType {
	return MarketHealthChanged
}

// DecisionReceivedData contains data for DecisionReceived events
type DecisionReceivedData struct {
	AgentID    string  `json:"agent_id"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy,omitempty"`
}

// EventType returns the event type for DecisionReceivedData
func (d *DecisionReceivedData) EventType() EventType {
	return DecisionReceived
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
