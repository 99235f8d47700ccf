package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
)

// Store implements store.Store on top of Cassandra.
// A session is one partition of ledger_records; every commit is a
// single-partition logged batch guarded by the static version column.
type Store struct {
	client *Client
}

// NewStore creates a new Cassandra-backed ledger store
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// CreateSession inserts the session header with version 1 if the partition is empty
func (s *Store) CreateSession(ctx context.Context, ledger *store.Ledger) error {
	records, err := ledger.EncodeDirty()
	if err != nil {
		return err
	}

	batch := s.client.Session().NewBatch(gocql.LoggedBatch).WithContext(ctx)
	first := true
	for key, body := range records {
		if first {
			batch.Query(fmt.Sprintf(`
				INSERT INTO %s.ledger_records (session_id, record_key, body, version)
				VALUES (?, ?, ?, ?)
				IF NOT EXISTS`, s.client.Keyspace()),
				ledger.Session.ID, key, body, int64(1))
			first = false
			continue
		}
		batch.Query(fmt.Sprintf(`
			INSERT INTO %s.ledger_records (session_id, record_key, body)
			VALUES (?, ?, ?)`, s.client.Keyspace()),
			ledger.Session.ID, key, body)
	}

	applied, iter, err := s.client.Session().MapExecuteBatchCAS(batch, map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if !applied {
		return store.ErrSessionExists
	}

	ledger.Committed(1)
	return nil
}

// Load reads every record of a session partition
func (s *Store) Load(ctx context.Context, sessionID string) (*store.Ledger, error) {
	query := fmt.Sprintf(`
		SELECT record_key, body, version
		FROM %s.ledger_records
		WHERE session_id = ?`, s.client.Keyspace())

	iter := s.client.Session().Query(query, sessionID).WithContext(ctx).Iter()

	records := make(map[string][]byte)
	var (
		key     string
		body    []byte
		version int64
	)
	for iter.Scan(&key, &body, &version) {
		records[key] = append([]byte(nil), body...)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(records) == 0 {
		return nil, store.ErrSessionNotFound
	}

	return store.DecodeLedger(version, records)
}

// Commit bumps the partition version and writes the dirty records in one
// conditional batch. A failed condition means another writer got there first.
func (s *Store) Commit(ctx context.Context, ledger *store.Ledger) error {
	records, err := ledger.EncodeDirty()
	if err != nil {
		return err
	}

	next := ledger.Version() + 1
	batch := s.client.Session().NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(fmt.Sprintf(`
		UPDATE %s.ledger_records SET version = ?
		WHERE session_id = ?
		IF version = ?`, s.client.Keyspace()),
		next, ledger.Session.ID, ledger.Version())
	for key, body := range records {
		batch.Query(fmt.Sprintf(`
			INSERT INTO %s.ledger_records (session_id, record_key, body)
			VALUES (?, ?, ?)`, s.client.Keyspace()),
			ledger.Session.ID, key, body)
	}

	previous := map[string]interface{}{}
	applied, iter, err := s.client.Session().MapExecuteBatchCAS(batch, previous)
	if err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	if !applied {
		// A null version means the partition does not exist
		if v, _ := previous["version"].(int64); v == 0 {
			return store.ErrSessionNotFound
		}
		return store.ErrConflict
	}

	ledger.Committed(next)
	return nil
}
