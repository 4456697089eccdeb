// Package agents manages the trading agents and their stock pools.
package agents

import (
	"time"

	"github.com/alphatrader/alphatrader/internal/modules/portfolio"
)

// Agent is one autonomous trading account. Each agent owns its ledger and
// watches the symbols of its assigned pool.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	PoolID      string    `json:"poolId"`
	InitialCash float64   `json:"initialCash"`
	CreatedAt   time.Time `json:"createdAt"`

	Ledger *portfolio.Ledger `json:"-"`
}

// Pool is a named watchlist of symbols shared between agents.
type Pool struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// AgentState is the serializable form of an agent, used by the workspace
// persistence layer.
type AgentState struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Enabled     bool               `json:"enabled"`
	PoolID      string             `json:"poolId"`
	InitialCash float64            `json:"initialCash"`
	CreatedAt   time.Time          `json:"createdAt"`
	Portfolio   portfolio.Snapshot `json:"portfolio"`
}
