// Package engine implements the round engine: the session state machine,
// the per-player prediction ledger, the round result ledger, scoring and
// the rank to prize calculation.
//
// Every exported operation takes the caller identity and the current time
// explicitly. An operation loads the session ledger, validates, mutates and
// commits it as one unit; a failing call leaves stored records unchanged.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
)

// Vault moves value on behalf of the engine. It is the source of truth for
// balances and must reject transfers it cannot honour.
type Vault interface {
	CollectEntryFee(ctx context.Context, sessionID, player string, amount uint64) error
	ReleasePrize(ctx context.Context, sessionID, player string, rank uint16, amount uint64) error
	CollectPlatformFee(ctx context.Context, sessionID string, amount uint64) error
	RefundEntryFee(ctx context.Context, sessionID, player string, amount uint64) error

	// Compensations for a transfer whose ledger commit failed
	ReturnPrize(ctx context.Context, sessionID, player string, amount uint64) error
	ReturnPlatformFee(ctx context.Context, sessionID string, amount uint64) error
}

// Engine validates and records every round engine operation.
type Engine struct {
	store  store.Store
	vault  Vault
	rules  Rules
	logger *zap.Logger
	locks  *keyedMutex
}

// New creates an engine. Rules are validated once here.
func New(s store.Store, v Vault, rules Rules, logger *zap.Logger) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  s,
		vault:  v,
		rules:  rules,
		logger: logger,
		locks:  newKeyedMutex(),
	}, nil
}

// Rules returns the rules new sessions are created with.
func (e *Engine) Rules() Rules {
	return e.rules
}

// mutation is one engine call against a loaded ledger.
type mutation struct {
	// apply validates and mutates the ledger in memory.
	apply func(l *store.Ledger) error
	// effect runs an external side effect after apply succeeded and before commit.
	effect func(ctx context.Context, l *store.Ledger) error
	// revert undoes effect when the commit fails.
	revert func(ctx context.Context, l *store.Ledger) error
}

// update runs m against the latest committed ledger of a session. Calls for
// the same session are serialized in-process; the store's version check
// serializes them across processes.
func (e *Engine) update(ctx context.Context, sessionID string, m mutation) (*store.Ledger, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	l, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, storeError(err)
	}

	if err := m.apply(l); err != nil {
		return nil, err
	}

	if m.effect != nil {
		if err := m.effect(ctx, l); err != nil {
			return nil, err
		}
	}

	if !l.Dirty() {
		return l, nil
	}

	if err := e.store.Commit(ctx, l); err != nil {
		e.logger.Warn("Failed to commit session ledger",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		if m.revert != nil {
			if rerr := m.revert(ctx, l); rerr != nil {
				e.logger.Error("Failed to revert vault transfer",
					zap.String("session_id", sessionID),
					zap.Error(rerr),
				)
			}
		}
		return nil, storeError(err)
	}
	return l, nil
}

// view loads a ledger for read-only queries.
func (e *Engine) view(ctx context.Context, sessionID string) (*store.Ledger, error) {
	l, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, storeError(err)
	}
	return l, nil
}

// vaultError wraps a vault rejection so it surfaces as an invalid state
// while keeping the cause.
func vaultError(msg string, err error) error {
	return &Error{Kind: KindInvalidState, Message: msg, Err: err}
}

// keyedMutex hands out one mutex per key and drops it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
