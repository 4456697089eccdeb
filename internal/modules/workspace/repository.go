package workspace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository stores workspaces in workspace.db, one row per user,
// last write wins.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new workspace repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "workspace").Logger(),
	}
}

// Save upserts the workspace document for userID.
func (r *Repository) Save(userID string, ws Workspace) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	ws.UpdatedAt = time.Now()
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to encode workspace for %s: %w", userID, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO workspaces (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		userID, string(data), ws.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save workspace for %s: %w", userID, err)
	}
	return nil
}

// Load reads the workspace for userID. A missing row returns (nil, nil);
// a corrupt document is logged and treated as missing.
func (r *Repository) Load(userID string) (*Workspace, error) {
	var data string
	err := r.db.QueryRow(`SELECT data FROM workspaces WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace for %s: %w", userID, err)
	}

	var ws Workspace
	if err := json.Unmarshal([]byte(data), &ws); err != nil {
		r.log.Warn().Err(err).Str("user", userID).Msg("Corrupt workspace document, starting fresh")
		return nil, nil
	}
	return &ws, nil
}
