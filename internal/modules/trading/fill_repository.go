package trading

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// fillsColumns is the column list for the fills table.
// Order must match scanFill.
const fillsColumns = `id, agent_id, symbol, action, exec_price, quantity, total_amount, status, strategy_tag, rationale, confidence, executed_at`

// FillRepository is the append-only fill history in ledger.db. Records are
// never updated or deleted; the ledger is the audit trail.
type FillRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewFillRepository creates a new fill repository
func NewFillRepository(ledgerDB *sql.DB, log zerolog.Logger) *FillRepository {
	return &FillRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "fill").Logger(),
	}
}

// Create appends one fill record.
func (r *FillRepository) Create(fill Fill) error {
	if err := fill.Validate(); err != nil {
		return fmt.Errorf("failed to create fill: %w", err)
	}

	query := `
		INSERT INTO fills
		(id, agent_id, symbol, action, exec_price, quantity, total_amount,
		 status, strategy_tag, rationale, confidence, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.ledgerDB.Exec(query,
		fill.ID,
		fill.AgentID,
		strings.TrimSpace(fill.Symbol),
		string(fill.Action),
		fill.ExecPrice,
		fill.Quantity,
		fill.TotalAmount,
		string(fill.Status),
		fill.StrategyTag,
		fill.Rationale,
		fill.Confidence,
		fill.ExecutedAt.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fill %s: %w", fill.ID, err)
	}
	return nil
}

// Recent returns the newest fills, optionally scoped to one agent.
func (r *FillRepository) Recent(agentID string, limit int) ([]Fill, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + fillsColumns + ` FROM fills`
	args := []interface{}{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY executed_at DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// CountForAgent returns how many fills an agent has on record.
func (r *FillRepository) CountForAgent(agentID string) (int, error) {
	var n int
	err := r.ledgerDB.QueryRow(`SELECT COUNT(*) FROM fills WHERE agent_id = ?`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count fills for %s: %w", agentID, err)
	}
	return n, nil
}

func scanFill(rows *sql.Rows) (Fill, error) {
	var f Fill
	var action, status string
	var executedAt int64

	err := rows.Scan(
		&f.ID, &f.AgentID, &f.Symbol, &action, &f.ExecPrice, &f.Quantity,
		&f.TotalAmount, &status, &f.StrategyTag, &f.Rationale, &f.Confidence,
		&executedAt,
	)
	if err != nil {
		return Fill{}, fmt.Errorf("failed to scan fill: %w", err)
	}

	f.Action = domain.TradeAction(action)
	f.Status = OrderState(status)
	f.ExecutedAt = time.Unix(executedAt, 0)
	return f, nil
}
