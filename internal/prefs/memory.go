package prefs

import "sync"

// MemoryStore is an in-memory Store for tests and for running without a
// database.
type MemoryStore struct {
	mu             sync.Mutex
	restrictedOnly bool
	namingPattern  string
	coverArt       bool
	paused         map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namingPattern: NamingAuthor,
		paused:        make(map[string]struct{}),
	}
}

func (s *MemoryStore) RestrictedOnly() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restrictedOnly, nil
}

func (s *MemoryStore) SetRestrictedOnly(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restrictedOnly = enabled
	return nil
}

func (s *MemoryStore) NamingPattern() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namingPattern, nil
}

func (s *MemoryStore) SetNamingPattern(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namingPattern = pattern
	return nil
}

func (s *MemoryStore) CompanionCoverArt() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coverArt, nil
}

func (s *MemoryStore) SetCompanionCoverArt(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coverArt = enabled
	return nil
}

func (s *MemoryStore) MarkPaused(itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paused[itemID]; ok {
		return false, nil
	}
	s.paused[itemID] = struct{}{}
	return true, nil
}

func (s *MemoryStore) ClearPaused(itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paused[itemID]; !ok {
		return false, nil
	}
	delete(s.paused, itemID)
	return true, nil
}

func (s *MemoryStore) IsPaused(itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paused[itemID]
	return ok, nil
}

func (s *MemoryStore) PausedIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.paused))
	for id := range s.paused {
		ids = append(ids, id)
	}
	return ids, nil
}
