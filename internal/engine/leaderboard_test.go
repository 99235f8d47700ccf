package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

func TestPrizeAmount(t *testing.T) {
	// pool 100 000, fee 6% -> distributable 94 000
	tests := []struct {
		rank     uint16
		expected uint64
	}{
		{rank: 1, expected: 37_600},
		{rank: 2, expected: 18_800},
		{rank: 3, expected: 11_280},
		{rank: 4, expected: 5_640},
		{rank: 5, expected: 5_640},
		{rank: 6, expected: 1_880},
		{rank: 10, expected: 1_880},
		{rank: 11, expected: 0},
		{rank: 0, expected: 0},
	}

	for _, tt := range tests {
		result := PrizeAmount(tt.rank, 100_000, 600)
		if result != tt.expected {
			t.Errorf("rank %d: expected %d, got %d", tt.rank, tt.expected, result)
		}
	}
}

func TestPrizeAmount_SumWithinDistributable(t *testing.T) {
	pools := []uint64{0, 1, 7, 999, 50_000, 123_456_789, math.MaxUint64}
	for _, pool := range pools {
		var sum uint64
		for rank := uint16(1); rank <= MaxRewardedRank; rank++ {
			sum += PrizeAmount(rank, pool, 600)
		}
		if sum > Distributable(pool, 600) {
			t.Errorf("pool %d: prizes %d exceed distributable %d", pool, sum, Distributable(pool, 600))
		}
	}
}

func TestPlatformFee(t *testing.T) {
	tests := []struct {
		name     string
		pool     uint64
		bps      uint16
		expected uint64
	}{
		{name: "six percent", pool: 100_000, bps: 600, expected: 6_000},
		{name: "rounds down", pool: 99, bps: 600, expected: 5},
		{name: "zero pool", pool: 0, bps: 600, expected: 0},
		{name: "max pool fits", pool: math.MaxUint64, bps: 600, expected: 1_106_804_644_422_573_096},
		{name: "quotient exceeds uint64", pool: math.MaxUint64, bps: math.MaxUint16, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PlatformFee(tt.pool, tt.bps)
			if result != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, result)
			}
		})
	}

	if Distributable(math.MaxUint64, math.MaxUint16) != math.MaxUint64 {
		t.Error("expected an unrepresentable fee to leave the pool whole")
	}
}

// finishedGame plays five rounds in which alice always wins and bob always
// loses, and returns the time the last round was evaluated.
func (f *fixture) finishedGame(id string, players ...string) time.Time {
	f.t.Helper()
	at := f.started(id, players...)
	answers := []types.Choice{types.ChoiceUp, types.ChoiceRangeA, types.ChoiceEqual, types.ChoiceZoneA, types.ChoiceLowerLower}
	losers := []types.Choice{types.ChoiceDown, types.ChoiceRangeD, types.ChoiceBtcMore, types.ChoiceZoneD, types.ChoiceHigherHigher}
	for i := range answers {
		choices := make(map[string]types.Choice, len(players))
		for j, p := range players {
			if j == 0 {
				choices[p] = answers[i]
			} else {
				choices[p] = losers[i]
			}
		}
		f.playRound(id, at, i+1, answers[i], choices)
	}
	_, end := roundTimes(at, len(answers))
	return end.Add(time.Minute)
}

func TestFinalizeRank(t *testing.T) {
	f := newFixture(t)
	now := f.finishedGame("g1", "alice", "bob")

	_, err := f.eng.FinalizeRank(f.ctx, "alice", "g1", "alice", 1, now)
	assertKind(t, err, KindUnauthorized)

	_, err = f.eng.FinalizeRank(f.ctx, operator, "g1", "alice", 0, now)
	assertKind(t, err, KindValidationFailed)

	_, err = f.eng.FinalizeRank(f.ctx, operator, "g1", "mallory", 1, now)
	assertKind(t, err, KindNotFound)

	entry, err := f.eng.FinalizeRank(f.ctx, operator, "g1", "alice", 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// pool 2000, fee 120, distributable 1880, 40% -> 752
	if entry.FinalRank == nil || *entry.FinalRank != 1 || entry.PrizeAmount != 752 {
		t.Errorf("unexpected rank result: rank=%v prize=%d", entry.FinalRank, entry.PrizeAmount)
	}

	session, _ := f.eng.Session(f.ctx, "g1")
	if session.TopScorer == nil || *session.TopScorer != "alice" || session.HighestScore != 500 {
		t.Errorf("unexpected top scorer %v / %d", session.TopScorer, session.HighestScore)
	}

	_, err = f.eng.FinalizeRank(f.ctx, operator, "g1", "alice", 2, now)
	assertKind(t, err, KindDuplicateAction)
}

func TestFinalizeRank_RequiresAllRounds(t *testing.T) {
	f := newFixture(t)
	at := f.started("g1", "alice", "bob")
	f.playRound("g1", at, 1, types.ChoiceUp, map[string]types.Choice{"alice": types.ChoiceUp})

	_, err := f.eng.FinalizeRank(f.ctx, operator, "g1", "alice", 1, at.Add(time.Hour))
	assertKind(t, err, KindInvalidState)
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	now := f.finishedGame("g1", "alice", "bob")

	if _, err := f.eng.FinalizeRank(f.ctx, operator, "g1", "alice", 1, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.eng.FinalizeRank(f.ctx, operator, "g1", "bob", 11, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Not completed yet
	_, err := f.eng.Claim(f.ctx, "alice", "g1", "alice", now)
	assertKind(t, err, KindInvalidState)

	if _, err := f.eng.Complete(f.ctx, operator, "g1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.eng.Claim(f.ctx, "bob", "g1", "alice", now)
	assertKind(t, err, KindUnauthorized)

	_, err = f.eng.Claim(f.ctx, "bob", "g1", "bob", now)
	assertKind(t, err, KindInvalidState)

	entry, err := f.eng.Claim(f.ctx, "alice", "g1", "alice", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.PrizeClaimed {
		t.Error("expected prize claimed")
	}

	_, err = f.eng.Claim(f.ctx, "alice", "g1", "alice", now)
	assertKind(t, err, KindDuplicateAction)

	if f.vault.releases != 1 || f.vault.released["g1/alice"] != 752 {
		t.Errorf("expected exactly one release of 752, got %d releases %v", f.vault.releases, f.vault.released)
	}
}

func TestClaim_VaultRejection(t *testing.T) {
	f := newFixture(t)
	now := f.finishedGame("g1", "alice", "bob")
	if _, err := f.eng.FinalizeRank(f.ctx, operator, "g1", "alice", 1, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.eng.Complete(f.ctx, operator, "g1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.vault.failNext = errors.New("insufficient pool balance")
	_, err := f.eng.Claim(f.ctx, "alice", "g1", "alice", now)
	assertKind(t, err, KindInvalidState)

	entry, _ := f.eng.Entry(f.ctx, "g1", "alice")
	if entry.PrizeClaimed {
		t.Error("rejected release must not record the claim")
	}

	if _, err := f.eng.Claim(f.ctx, "alice", "g1", "alice", now); err != nil {
		t.Fatalf("retry after vault recovery failed: %v", err)
	}
}

func TestCollectPlatformFee(t *testing.T) {
	f := newFixture(t)
	now := f.finishedGame("g1", "alice", "bob")

	_, err := f.eng.CollectPlatformFee(f.ctx, operator, "g1", now)
	assertKind(t, err, KindInvalidState)

	if _, err := f.eng.Complete(f.ctx, operator, "g1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.eng.CollectPlatformFee(f.ctx, "alice", "g1", now)
	assertKind(t, err, KindUnauthorized)

	fee, err := f.eng.CollectPlatformFee(f.ctx, operator, "g1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 120 || f.vault.fees["g1"] != 120 {
		t.Errorf("expected fee 120, got %d (vault %d)", fee, f.vault.fees["g1"])
	}

	_, err = f.eng.CollectPlatformFee(f.ctx, operator, "g1", now)
	assertKind(t, err, KindDuplicateAction)
	if f.vault.fees["g1"] != 120 {
		t.Errorf("expected a single fee collection, got %d", f.vault.fees["g1"])
	}
}

// completedGame finishes a two player game, ranks alice first and completes it.
func (f *fixture) completedGame(id string) time.Time {
	f.t.Helper()
	now := f.finishedGame(id, "alice", "bob")
	if _, err := f.eng.FinalizeRank(f.ctx, operator, id, "alice", 1, now); err != nil {
		f.t.Fatalf("rank failed: %v", err)
	}
	if _, err := f.eng.Complete(f.ctx, operator, id, now); err != nil {
		f.t.Fatalf("complete failed: %v", err)
	}
	return now
}

func TestClaim_CommitFailureReturnsPrize(t *testing.T) {
	f := newFixture(t)
	now := f.completedGame("g1")

	f.flaky.failCommits(1)
	_, err := f.eng.Claim(f.ctx, "alice", "g1", "alice", now)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.vault.released["g1/alice"] != 0 || f.vault.returns != 1 {
		t.Errorf("expected the release to be returned, got released=%d returns=%d", f.vault.released["g1/alice"], f.vault.returns)
	}
	entry, _ := f.eng.Entry(f.ctx, "g1", "alice")
	if entry.PrizeClaimed {
		t.Error("failed commit must not record the claim")
	}

	entry, err = f.eng.Claim(f.ctx, "alice", "g1", "alice", now)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !entry.PrizeClaimed || f.vault.released["g1/alice"] != 752 {
		t.Errorf("expected a recorded claim of 752, got claimed=%v released=%d", entry.PrizeClaimed, f.vault.released["g1/alice"])
	}
}

func TestCollectPlatformFee_CommitFailureReturnsFee(t *testing.T) {
	f := newFixture(t)
	now := f.completedGame("g1")

	f.flaky.failCommits(1)
	_, err := f.eng.CollectPlatformFee(f.ctx, operator, "g1", now)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.vault.fees["g1"] != 0 || f.vault.returns != 1 {
		t.Errorf("expected the fee to be returned, got fees=%d returns=%d", f.vault.fees["g1"], f.vault.returns)
	}
	session, _ := f.eng.Session(f.ctx, "g1")
	if session.PlatformFeeCollected {
		t.Error("failed commit must not mark the fee collected")
	}

	fee, err := f.eng.CollectPlatformFee(f.ctx, operator, "g1", now)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	session, _ = f.eng.Session(f.ctx, "g1")
	if fee != 120 || f.vault.fees["g1"] != 120 || !session.PlatformFeeCollected {
		t.Errorf("expected one recorded fee of 120, got fee=%d vault=%d collected=%v", fee, f.vault.fees["g1"], session.PlatformFeeCollected)
	}
}
