// Package vault is an in-process custody ledger for entry fees, prize pools
// and the platform fee account. Token conversion and withdrawals are handled
// elsewhere; this ledger only moves credits between accounts.
package vault

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Errors
var (
	ErrInsufficientBalance = &VaultError{Message: "Insufficient balance"}
	ErrInsufficientPool    = &VaultError{Message: "Prize pool has insufficient funds"}
	ErrAlreadyClaimed      = &VaultError{Message: "Prize has already been claimed by this player"}
	ErrFeeAlreadyCollected = &VaultError{Message: "Platform fee has already been collected"}
	ErrInvalidRank         = &VaultError{Message: "Invalid rank provided (must be 1-10)"}
	ErrArithmeticOverflow  = &VaultError{Message: "Arithmetic overflow occurred"}
	ErrNotClaimed          = &VaultError{Message: "Prize has not been released to this player"}
	ErrFeeNotCollected     = &VaultError{Message: "Platform fee has not been collected"}
	ErrInsufficientFees    = &VaultError{Message: "Fee account has insufficient funds"}
)

// VaultError represents a rejected transfer
type VaultError struct {
	Message string
}

func (e *VaultError) Error() string {
	return e.Message
}

// Ledger holds player credit balances, one pool per session and the fee account.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]uint64
	pools    map[string]uint64
	fees     uint64

	claimed      map[string]struct{} // session/player
	feeCollected map[string]struct{} // session

	logger *zap.Logger
}

// NewLedger creates an empty custody ledger
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		balances:     make(map[string]uint64),
		pools:        make(map[string]uint64),
		claimed:      make(map[string]struct{}),
		feeCollected: make(map[string]struct{}),
		logger:       logger,
	}
}

// Deposit credits a player's balance.
func (l *Ledger) Deposit(player string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[player] + amount
	if balance < amount {
		return ErrArithmeticOverflow
	}
	l.balances[player] = balance
	return nil
}

// Balance returns a player's credit balance.
func (l *Ledger) Balance(player string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[player]
}

// Pool returns the funds currently held for a session.
func (l *Ledger) Pool(sessionID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pools[sessionID]
}

// Fees returns the platform fee account balance.
func (l *Ledger) Fees() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fees
}

// CollectEntryFee moves amount from the player's balance into the session pool.
func (l *Ledger) CollectEntryFee(ctx context.Context, sessionID, player string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[player] < amount {
		return ErrInsufficientBalance
	}
	pool := l.pools[sessionID] + amount
	if pool < amount {
		return ErrArithmeticOverflow
	}
	l.balances[player] -= amount
	l.pools[sessionID] = pool

	l.logger.Debug("Entry fee collected",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Uint64("amount", amount),
	)
	return nil
}

// RefundEntryFee moves amount from the session pool back to the player.
func (l *Ledger) RefundEntryFee(ctx context.Context, sessionID, player string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pools[sessionID] < amount {
		return ErrInsufficientPool
	}
	balance := l.balances[player] + amount
	if balance < amount {
		return ErrArithmeticOverflow
	}
	l.pools[sessionID] -= amount
	l.balances[player] = balance

	l.logger.Debug("Entry fee refunded",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Uint64("amount", amount),
	)
	return nil
}

// ReleasePrize pays a ranked player out of the session pool, once.
func (l *Ledger) ReleasePrize(ctx context.Context, sessionID, player string, rank uint16, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rank < 1 || rank > 10 {
		return ErrInvalidRank
	}
	key := sessionID + "/" + player
	if _, ok := l.claimed[key]; ok {
		return ErrAlreadyClaimed
	}
	if l.pools[sessionID] < amount {
		return ErrInsufficientPool
	}
	balance := l.balances[player] + amount
	if balance < amount {
		return ErrArithmeticOverflow
	}
	l.pools[sessionID] -= amount
	l.balances[player] = balance
	l.claimed[key] = struct{}{}

	l.logger.Info("Prize released",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Uint16("rank", rank),
		zap.Uint64("amount", amount),
	)
	return nil
}

// CollectPlatformFee moves amount from the session pool to the fee account, once.
func (l *Ledger) CollectPlatformFee(ctx context.Context, sessionID string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.feeCollected[sessionID]; ok {
		return ErrFeeAlreadyCollected
	}
	if l.pools[sessionID] < amount {
		return ErrInsufficientPool
	}
	fees := l.fees + amount
	if fees < amount {
		return ErrArithmeticOverflow
	}
	l.pools[sessionID] -= amount
	l.fees = fees
	l.feeCollected[sessionID] = struct{}{}

	l.logger.Info("Platform fee collected",
		zap.String("session_id", sessionID),
		zap.Uint64("amount", amount),
	)
	return nil
}

// ReturnPrize undoes a ReleasePrize: amount goes back from the player to the
// session pool and the player may be paid again.
func (l *Ledger) ReturnPrize(ctx context.Context, sessionID, player string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := sessionID + "/" + player
	if _, ok := l.claimed[key]; !ok {
		return ErrNotClaimed
	}
	if l.balances[player] < amount {
		return ErrInsufficientBalance
	}
	pool := l.pools[sessionID] + amount
	if pool < amount {
		return ErrArithmeticOverflow
	}
	l.balances[player] -= amount
	l.pools[sessionID] = pool
	delete(l.claimed, key)

	l.logger.Warn("Prize returned to pool",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Uint64("amount", amount),
	)
	return nil
}

// ReturnPlatformFee undoes a CollectPlatformFee for a session.
func (l *Ledger) ReturnPlatformFee(ctx context.Context, sessionID string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.feeCollected[sessionID]; !ok {
		return ErrFeeNotCollected
	}
	if l.fees < amount {
		return ErrInsufficientFees
	}
	pool := l.pools[sessionID] + amount
	if pool < amount {
		return ErrArithmeticOverflow
	}
	l.fees -= amount
	l.pools[sessionID] = pool
	delete(l.feeCollected, sessionID)

	l.logger.Warn("Platform fee returned to pool",
		zap.String("session_id", sessionID),
		zap.Uint64("amount", amount),
	)
	return nil
}
