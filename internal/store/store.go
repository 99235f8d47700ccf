package store

import "context"

// Store persists session ledgers.
// This abstraction allows swapping implementations (memory, Redis, Cassandra)
// without changing the engine.
type Store interface {
	// CreateSession stores a new ledger. Fails with ErrSessionExists.
	CreateSession(ctx context.Context, ledger *Ledger) error

	// Load reads every record of a session.
	Load(ctx context.Context, sessionID string) (*Ledger, error)

	// Commit writes the ledger's dirty records atomically, provided nobody
	// committed since the ledger was loaded. Fails with ErrConflict otherwise.
	Commit(ctx context.Context, ledger *Ledger) error
}

// Errors
var (
	ErrSessionNotFound = &StoreError{Message: "session not found"}
	ErrSessionExists   = &StoreError{Message: "session already exists"}
	ErrConflict        = &StoreError{Message: "ledger modified concurrently"}
)

// StoreError represents a storage error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
