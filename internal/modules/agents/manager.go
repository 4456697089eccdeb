package agents

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/modules/portfolio"
)

// Manager owns the live agent and pool sets. It is the single mutation
// point; everything else works with copies.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	pools  map[string]*Pool
	log    zerolog.Logger
}

// NewManager creates an empty agent manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		agents: make(map[string]*Agent),
		pools:  make(map[string]*Pool),
		log:    log.With().Str("service", "agents").Logger(),
	}
}

// CreateAgent registers a new enabled agent funded with initialCash.
func (m *Manager) CreateAgent(name string, initialCash float64, poolID string) (*Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if initialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive, got %.2f", initialCash)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if poolID != "" {
		if _, ok := m.pools[poolID]; !ok {
			return nil, fmt.Errorf("pool %s does not exist", poolID)
		}
	}

	id := uuid.New().String()
	agent := &Agent{
		ID:          id,
		Name:        name,
		Enabled:     true,
		PoolID:      poolID,
		InitialCash: initialCash,
		CreatedAt:   time.Now(),
		Ledger:      portfolio.NewLedger(id, initialCash),
	}
	m.agents[id] = agent

	m.log.Info().Str("agent", id).Str("name", name).Float64("cash", initialCash).Msg("Agent created")
	return agent, nil
}

// Agent returns the live agent by id.
func (m *Manager) Agent(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// Agents returns the live agents sorted by creation time.
func (m *Manager) Agents() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// EnabledAgents returns the agents eligible for the decision fan-out.
func (m *Manager) EnabledAgents() []*Agent {
	all := m.Agents()
	out := make([]*Agent, 0, len(all))
	for _, a := range all {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// SetEnabled toggles an agent's participation in trading cycles.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("agent %s not found", id)
	}
	a.Enabled = enabled
	return nil
}

// RemoveAgent drops an agent. Its fill history stays in the ledger database.
func (m *Manager) RemoveAgent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[id]; !ok {
		return fmt.Errorf("agent %s not found", id)
	}
	delete(m.agents, id)
	return nil
}

// CreatePool registers a named watchlist.
func (m *Manager) CreatePool(name string, symbols []string) (*Pool, error) {
	if name == "" {
		return nil, fmt.Errorf("pool name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pool := &Pool{
		ID:      uuid.New().String(),
		Name:    name,
		Symbols: dedupe(symbols),
	}
	m.pools[pool.ID] = pool
	return pool, nil
}

// Pool returns a pool by id.
func (m *Manager) Pool(id string) (*Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	return p, ok
}

// Pools returns all pools sorted by name.
func (m *Manager) Pools() []*Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UpdatePool replaces a pool's symbol list.
func (m *Manager) UpdatePool(id string, symbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[id]
	if !ok {
		return fmt.Errorf("pool %s not found", id)
	}
	p.Symbols = dedupe(symbols)
	return nil
}

// RemovePool drops a pool and detaches any agents watching it.
func (m *Manager) RemovePool(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[id]; !ok {
		return fmt.Errorf("pool %s not found", id)
	}
	delete(m.pools, id)
	for _, a := range m.agents {
		if a.PoolID == id {
			a.PoolID = ""
		}
	}
	return nil
}

// WatchedSymbols returns the deduplicated union of all enabled agents'
// pool symbols and held positions.
func (m *Manager) WatchedSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, a := range m.agents {
		if !a.Enabled {
			continue
		}
		if pool, ok := m.pools[a.PoolID]; ok {
			for _, s := range pool.Symbols {
				seen[s] = true
			}
		}
		for _, s := range a.Ledger.HeldSymbols() {
			seen[s] = true
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Export captures the full agent and pool state for persistence.
func (m *Manager) Export() ([]AgentState, []Pool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]AgentState, 0, len(m.agents))
	for _, a := range m.agents {
		states = append(states, AgentState{
			ID:          a.ID,
			Name:        a.Name,
			Enabled:     a.Enabled,
			PoolID:      a.PoolID,
			InitialCash: a.InitialCash,
			CreatedAt:   a.CreatedAt,
			Portfolio:   a.Ledger.Snapshot(),
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })

	pools := make([]Pool, 0, len(m.pools))
	for _, p := range m.pools {
		cp := *p
		cp.Symbols = append([]string(nil), p.Symbols...)
		pools = append(pools, cp)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })

	return states, pools
}

// Restore replaces the live state from a persisted workspace.
func (m *Manager) Restore(states []AgentState, pools []Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pools = make(map[string]*Pool, len(pools))
	for _, p := range pools {
		cp := p
		cp.Symbols = append([]string(nil), p.Symbols...)
		m.pools[p.ID] = &cp
	}

	m.agents = make(map[string]*Agent, len(states))
	for _, s := range states {
		ledger := portfolio.NewLedger(s.ID, s.InitialCash)
		ledger.Restore(s.Portfolio)
		m.agents[s.ID] = &Agent{
			ID:          s.ID,
			Name:        s.Name,
			Enabled:     s.Enabled,
			PoolID:      s.PoolID,
			InitialCash: s.InitialCash,
			CreatedAt:   s.CreatedAt,
			Ledger:      ledger,
		}
	}

	m.log.Info().Int("agents", len(states)).Int("pools", len(pools)).Msg("Workspace state restored")
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
