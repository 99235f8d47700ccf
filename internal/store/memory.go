package store

import (
	"context"
	"sync"
)

// MemoryStore provides in-memory storage for session ledgers.
// Records are kept encoded so a loaded ledger never aliases stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*memoryLedger
}

type memoryLedger struct {
	version int64
	records map[string][]byte
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]*memoryLedger),
	}
}

// CreateSession creates a new ledger
func (s *MemoryStore) CreateSession(ctx context.Context, ledger *Ledger) error {
	records, err := ledger.EncodeDirty()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ledgers[ledger.Session.ID]; exists {
		return ErrSessionExists
	}

	s.ledgers[ledger.Session.ID] = &memoryLedger{version: 1, records: records}
	ledger.Committed(1)
	return nil
}

// Load retrieves a ledger by session ID
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.ledgers[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return DecodeLedger(stored.version, stored.records)
}

// Commit writes the dirty records of a ledger
func (s *MemoryStore) Commit(ctx context.Context, ledger *Ledger) error {
	records, err := ledger.EncodeDirty()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.ledgers[ledger.Session.ID]
	if !exists {
		return ErrSessionNotFound
	}
	if stored.version != ledger.Version() {
		return ErrConflict
	}

	for key, data := range records {
		stored.records[key] = data
	}
	stored.version++
	ledger.Committed(stored.version)
	return nil
}
