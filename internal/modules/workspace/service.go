package workspace

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// saveDebounce batches rapid state changes into one write.
const saveDebounce = 2 * time.Second

// Supplier produces the current workspace state for a user on demand.
type Supplier func(userID string) Workspace

// Service debounces workspace saves: every state change requests a save, and
// the repository sees at most one write per debounce window, carrying
// whatever the state is when the timer fires (last write wins).
type Service struct {
	repo     *Repository
	supplier Supplier
	delay    time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewService creates a debounced workspace saver.
func NewService(repo *Repository, supplier Supplier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		supplier: supplier,
		delay:    saveDebounce,
		log:      log.With().Str("service", "workspace").Logger(),
		timers:   make(map[string]*time.Timer),
	}
}

// RequestSave schedules a save for userID, extending any pending window.
func (s *Service) RequestSave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if t, ok := s.timers[userID]; ok {
		t.Reset(s.delay)
		return
	}
	s.timers[userID] = time.AfterFunc(s.delay, func() {
		s.flush(userID)
	})
}

// Flush writes userID's workspace immediately, cancelling any pending timer.
func (s *Service) Flush(userID string) error {
	s.mu.Lock()
	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
	s.mu.Unlock()

	return s.save(userID)
}

// Load reads the persisted workspace for userID.
func (s *Service) Load(userID string) (*Workspace, error) {
	return s.repo.Load(userID)
}

// Close stops all pending timers and flushes every dirty workspace.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	pending := make([]string, 0, len(s.timers))
	for userID, t := range s.timers {
		t.Stop()
		pending = append(pending, userID)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, userID := range pending {
		if err := s.save(userID); err != nil {
			s.log.Error().Err(err).Str("user", userID).Msg("Failed to flush workspace on close")
		}
	}
}

func (s *Service) flush(userID string) {
	s.mu.Lock()
	delete(s.timers, userID)
	s.mu.Unlock()

	if err := s.save(userID); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("Debounced workspace save failed")
	}
}

func (s *Service) save(userID string) error {
	ws := s.supplier(userID)
	if err := s.repo.Save(userID, ws); err != nil {
		return err
	}
	s.log.Debug().Str("user", userID).Int("agents", len(ws.Agents)).Msg("Workspace saved")
	return nil
}
