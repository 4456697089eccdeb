package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alphatrader/alphatrader/internal/domain"
	"github.com/alphatrader/alphatrader/internal/modules/workspace"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "alphatrader",
	})
}

// handleMarket serves one filtered catalog page.
// GET /api/market?page&pageSize&q
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)
	keyword := r.URL.Query().Get("q")

	result, err := s.market.Catalog(r.Context(), page, pageSize, keyword)
	if err != nil {
		if errors.Is(err, domain.ErrAllSourcesExhausted) {
			s.writeError(w, http.StatusServiceUnavailable, "no market data source available")
			return
		}
		s.log.Error().Err(err).Msg("Catalog read failed")
		s.writeError(w, http.StatusInternalServerError, "catalog read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleMarketRefresh forces a catalog rebuild from the providers.
// POST /api/market/refresh
func (s *Server) handleMarketRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.market.Refresh(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("Forced catalog rebuild failed")
		s.writeError(w, http.StatusServiceUnavailable, "catalog rebuild failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleQuotes serves one batch of realtime quotes.
// POST /api/quotes {"symbols": [...]}
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		s.writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	quotes, err := s.market.Quotes(r.Context(), req.Symbols)
	if err != nil {
		if errors.Is(err, domain.ErrAllSourcesExhausted) {
			s.writeError(w, http.StatusServiceUnavailable, "all quote sources failed")
			return
		}
		// Oversized batches are rejected up front, not truncated
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"data": quotes})
}

// handleHistory serves daily K-line bars, oldest first.
// GET /api/history?symbol&days
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	days := queryInt(r, "days", 0)

	bars, err := s.market.History(r.Context(), symbol, days)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("History fetch failed")
		s.writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol, "data": bars})
}

// handleTrades serves the persisted fill history, newest first.
// GET /api/trades?agent&limit
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent")
	limit := queryInt(r, "limit", 50)

	fills, err := s.fills.Recent(agentID, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Fill history read failed")
		s.writeError(w, http.StatusInternalServerError, "trade history read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"data": fills})
}

// handleListAgents returns every agent with its portfolio snapshot.
// GET /api/agents
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	states, _ := s.agents.Export()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"data": states})
}

// handleCreateAgent creates a trading agent.
// POST /api/agents {"name", "initialCash", "poolId"}
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		InitialCash float64 `json:"initialCash"`
		PoolID      string  `json:"poolId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent, err := s.agents.CreateAgent(req.Name, req.InitialCash, req.PoolID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.workspace.RequestSave(defaultUserID)
	s.writeJSON(w, http.StatusCreated, agent)
}

// handleUpdateAgent enables or disables an agent.
// PUT /api/agents/{id} {"enabled"}
func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		s.writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := s.agents.SetEnabled(id, *req.Enabled); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.workspace.RequestSave(defaultUserID)

	agent, _ := s.agents.Agent(id)
	s.writeJSON(w, http.StatusOK, agent)
}

// handleDeleteAgent removes an agent.
// DELETE /api/agents/{id}
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.agents.RemoveAgent(id); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.workspace.RequestSave(defaultUserID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListPools returns every stock pool.
// GET /api/pools
func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"data": s.agents.Pools()})
}

// handleCreatePool creates a stock pool.
// POST /api/pools {"name", "symbols"}
func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pool, err := s.agents.CreatePool(req.Name, req.Symbols)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.workspace.RequestSave(defaultUserID)
	s.writeJSON(w, http.StatusCreated, pool)
}

// handleUpdatePool replaces a pool's symbol list.
// PUT /api/pools/{id} {"symbols"}
func (s *Server) handleUpdatePool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.agents.UpdatePool(id, req.Symbols); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.workspace.RequestSave(defaultUserID)

	pool, _ := s.agents.Pool(id)
	s.writeJSON(w, http.StatusOK, pool)
}

// handleDeletePool removes a pool and detaches its agents.
// DELETE /api/pools/{id}
func (s *Server) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.agents.RemovePool(id); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.workspace.RequestSave(defaultUserID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleWorkspaceLoad returns the persisted workspace for one user.
// GET /api/workspace/{userID}
func (s *Server) handleWorkspaceLoad(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ws, err := s.workspace.Load(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("Workspace load failed")
		s.writeError(w, http.StatusInternalServerError, "workspace load failed")
		return
	}
	if ws == nil {
		s.writeJSON(w, http.StatusOK, workspace.Workspace{})
		return
	}
	s.writeJSON(w, http.StatusOK, ws)
}

// handleWorkspaceSave replaces the live agent state with the submitted
// workspace and persists it immediately. Last write wins.
// POST /api/workspace?user=
func (s *Server) handleWorkspaceSave(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = defaultUserID
	}

	var ws workspace.Workspace
	if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.agents.Restore(ws.Agents, ws.Pools)
	if err := s.workspace.Flush(userID); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("Workspace save failed")
		s.writeError(w, http.StatusInternalServerError, "workspace save failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
