package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// newRedisTestStore connects to REDIS_TEST_ADDR and skips when it is unset.
func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	s, err := NewRedisStore(RedisOptions{Addr: addr}, time.Minute)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_Lifecycle(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()
	id := "test_" + uuid.New().String()

	ledger := NewLedger(newTestSession(id))
	if err := s.CreateSession(ctx, ledger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateSession(ctx, NewLedger(newTestSession(id))); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}

	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	ledger.PutEntry(types.NewPlayerEntry(id, "alice", "alice", 1, 5, now))
	ledger.Session.TotalPlayers = 1
	ledger.Touch()
	if err := s.Commit(ctx, ledger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Version() != ledger.Version() || loaded.Entry("alice") == nil || loaded.Session.TotalPlayers != 1 {
		t.Errorf("unexpected ledger: version %d, session %+v", loaded.Version(), loaded.Session)
	}

	// A stale copy must not overwrite the newer commit
	stale, _ := s.Load(ctx, id)
	loaded.Session.TotalPlayers = 2
	loaded.Touch()
	if err := s.Commit(ctx, loaded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stale.Session.TotalPlayers = 3
	stale.Touch()
	if err := s.Commit(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if _, err := s.Load(ctx, "missing_"+id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
