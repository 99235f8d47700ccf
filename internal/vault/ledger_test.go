package vault

import (
	"context"
	"errors"
	"testing"
)

func TestLedger_EntryFees(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)

	if err := l.Deposit("alice", 1_500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := l.CollectEntryFee(ctx, "g1", "alice", 1_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Balance("alice") != 500 || l.Pool("g1") != 1_000 {
		t.Errorf("expected balance 500 and pool 1000, got %d / %d", l.Balance("alice"), l.Pool("g1"))
	}

	if err := l.CollectEntryFee(ctx, "g1", "alice", 1_000); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if l.Balance("alice") != 500 || l.Pool("g1") != 1_000 {
		t.Error("rejected collection moved funds")
	}

	if err := l.RefundEntryFee(ctx, "g1", "alice", 1_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Balance("alice") != 1_500 || l.Pool("g1") != 0 {
		t.Errorf("expected refund to restore balance, got %d / %d", l.Balance("alice"), l.Pool("g1"))
	}

	if err := l.RefundEntryFee(ctx, "g1", "alice", 1); !errors.Is(err, ErrInsufficientPool) {
		t.Errorf("expected ErrInsufficientPool, got %v", err)
	}
}

func TestLedger_ReleasePrize(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	for _, p := range []string{"alice", "bob"} {
		_ = l.Deposit(p, 1_000)
		if err := l.CollectEntryFee(ctx, "g1", p, 1_000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tests := []struct {
		name    string
		player  string
		rank    uint16
		amount  uint64
		wantErr error
	}{
		{name: "rank zero", player: "alice", rank: 0, amount: 10, wantErr: ErrInvalidRank},
		{name: "rank eleven", player: "alice", rank: 11, amount: 10, wantErr: ErrInvalidRank},
		{name: "more than the pool", player: "alice", rank: 1, amount: 2_001, wantErr: ErrInsufficientPool},
		{name: "winner", player: "alice", rank: 1, amount: 752},
		{name: "second release", player: "alice", rank: 1, amount: 752, wantErr: ErrAlreadyClaimed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.ReleasePrize(ctx, "g1", tt.player, tt.rank, tt.amount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if l.Balance("alice") != 752 || l.Pool("g1") != 2_000-752 {
		t.Errorf("expected one release, got balance %d pool %d", l.Balance("alice"), l.Pool("g1"))
	}
}

func TestLedger_CollectPlatformFee(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	_ = l.Deposit("alice", 2_000)
	_ = l.CollectEntryFee(ctx, "g1", "alice", 2_000)

	if err := l.CollectPlatformFee(ctx, "g1", 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.CollectPlatformFee(ctx, "g1", 120); !errors.Is(err, ErrFeeAlreadyCollected) {
		t.Errorf("expected ErrFeeAlreadyCollected, got %v", err)
	}
	if l.Fees() != 120 || l.Pool("g1") != 1_880 {
		t.Errorf("expected fees 120 and pool 1880, got %d / %d", l.Fees(), l.Pool("g1"))
	}

	if err := l.CollectPlatformFee(ctx, "g2", 1); !errors.Is(err, ErrInsufficientPool) {
		t.Errorf("expected ErrInsufficientPool for empty session, got %v", err)
	}
}

func TestLedger_ReturnPrize(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	_ = l.Deposit("alice", 1_000)
	_ = l.CollectEntryFee(ctx, "g1", "alice", 1_000)

	if err := l.ReturnPrize(ctx, "g1", "alice", 752); !errors.Is(err, ErrNotClaimed) {
		t.Errorf("expected ErrNotClaimed, got %v", err)
	}

	if err := l.ReleasePrize(ctx, "g1", "alice", 1, 752); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.ReturnPrize(ctx, "g1", "alice", 752); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Balance("alice") != 0 || l.Pool("g1") != 1_000 {
		t.Errorf("expected funds back in the pool, got balance %d pool %d", l.Balance("alice"), l.Pool("g1"))
	}

	// A returned prize can be released again
	if err := l.ReleasePrize(ctx, "g1", "alice", 1, 752); err != nil {
		t.Fatalf("release after return failed: %v", err)
	}
	if l.Balance("alice") != 752 {
		t.Errorf("expected balance 752, got %d", l.Balance("alice"))
	}
}

func TestLedger_ReturnPlatformFee(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	_ = l.Deposit("alice", 2_000)
	_ = l.CollectEntryFee(ctx, "g1", "alice", 2_000)

	if err := l.ReturnPlatformFee(ctx, "g1", 120); !errors.Is(err, ErrFeeNotCollected) {
		t.Errorf("expected ErrFeeNotCollected, got %v", err)
	}

	if err := l.CollectPlatformFee(ctx, "g1", 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.ReturnPlatformFee(ctx, "g1", 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Fees() != 0 || l.Pool("g1") != 2_000 {
		t.Errorf("expected fee back in the pool, got fees %d pool %d", l.Fees(), l.Pool("g1"))
	}
	if err := l.CollectPlatformFee(ctx, "g1", 120); err != nil {
		t.Fatalf("collection after return failed: %v", err)
	}
}
