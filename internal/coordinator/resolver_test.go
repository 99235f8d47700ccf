package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

func u64(v uint64) *uint64 { return &v }

func TestPriceOutcomeResolver(t *testing.T) {
	r := NewPriceOutcomeResolver()
	btcVsSol := &types.GameSession{GameType: types.GameBtcVsSol}
	solOnly := &types.GameSession{GameType: types.GameSolOnly}

	down := &types.RoundResult{StartPriceBTC: u64(1_000), EndPriceBTC: u64(990), StartPriceSOL: u64(100), EndPriceSOL: u64(101)}
	up := &types.RoundResult{StartPriceBTC: u64(1_000), EndPriceBTC: u64(1_010), StartPriceSOL: u64(100), EndPriceSOL: u64(99)}

	tests := []struct {
		name      string
		session   *types.GameSession
		roundType types.RoundType
		start     types.Prices
		end       types.Prices
		previous  *types.RoundResult
		expected  types.Choice
		wantErr   error
	}{
		{name: "up", session: btcVsSol, roundType: types.RoundPriceDirection, start: prices(1_000, 100), end: prices(1_001, 50), expected: types.ChoiceUp},
		{name: "unchanged is down", session: btcVsSol, roundType: types.RoundPriceDirection, start: prices(1_000, 100), end: prices(1_000, 200), expected: types.ChoiceDown},
		{name: "sol only follows sol", session: solOnly, roundType: types.RoundPriceDirection, start: prices(1_000, 100), end: prices(900, 101), expected: types.ChoiceUp},
		{name: "magnitude below 0.1%", session: btcVsSol, roundType: types.RoundMagnitude, start: prices(100_000, 1), end: prices(100_099, 1), expected: types.ChoiceRangeA},
		{name: "magnitude at 0.1%", session: btcVsSol, roundType: types.RoundMagnitude, start: prices(100_000, 1), end: prices(99_900, 1), expected: types.ChoiceRangeB},
		{name: "magnitude 0.7%", session: btcVsSol, roundType: types.RoundMagnitude, start: prices(100_000, 1), end: prices(100_700, 1), expected: types.ChoiceRangeC},
		{name: "magnitude 1%", session: btcVsSol, roundType: types.RoundMagnitude, start: prices(100_000, 1), end: prices(99_000, 1), expected: types.ChoiceRangeD},
		{name: "btc moves more", session: btcVsSol, roundType: types.RoundComparative, start: prices(1_000, 100), end: prices(1_020, 101), expected: types.ChoiceBtcMore},
		{name: "sol moves more", session: btcVsSol, roundType: types.RoundComparative, start: prices(1_000, 100), end: prices(990, 101), expected: types.ChoiceSolMore},
		{name: "equal moves", session: btcVsSol, roundType: types.RoundComparative, start: prices(10_000, 1_000), end: prices(10_100, 1_010), expected: types.ChoiceEqual},
		{name: "comparative needs both", session: btcVsSol, roundType: types.RoundComparative, start: types.Prices{BTC: u64(1)}, end: types.Prices{BTC: u64(2)}, wantErr: ErrMissingPrice},
		{name: "zone A", session: btcVsSol, roundType: types.RoundRange, start: prices(1_000, 1), end: prices(995, 1), expected: types.ChoiceZoneA},
		{name: "zone B", session: btcVsSol, roundType: types.RoundRange, start: prices(1_000, 1), end: prices(1_000, 1), expected: types.ChoiceZoneB},
		{name: "zone C", session: btcVsSol, roundType: types.RoundRange, start: prices(1_000, 1), end: prices(1_004, 1), expected: types.ChoiceZoneC},
		{name: "zone D", session: btcVsSol, roundType: types.RoundRange, start: prices(1_000, 1), end: prices(1_005, 1), expected: types.ChoiceZoneD},
		{name: "zero start", session: btcVsSol, roundType: types.RoundRange, start: prices(0, 1), end: prices(1, 1), wantErr: ErrZeroPrice},
		{name: "lower then higher", session: btcVsSol, roundType: types.RoundTrend, previous: down, start: prices(1_000, 1), end: prices(1_001, 1), expected: types.ChoiceLowerHigher},
		{name: "higher then higher", session: btcVsSol, roundType: types.RoundTrend, previous: up, start: prices(1_000, 1), end: prices(1_001, 1), expected: types.ChoiceHigherHigher},
		{name: "higher then lower", session: btcVsSol, roundType: types.RoundTrend, previous: up, start: prices(1_000, 1), end: prices(999, 1), expected: types.ChoiceHigherLower},
		{name: "sol trend", session: solOnly, roundType: types.RoundTrend, previous: up, start: prices(1, 100), end: prices(1, 99), expected: types.ChoiceLowerLower},
		{name: "trend without previous", session: btcVsSol, roundType: types.RoundTrend, start: prices(1_000, 1), end: prices(1_001, 1), wantErr: ErrNoPrevious},
		{name: "missing end price", session: btcVsSol, roundType: types.RoundPriceDirection, start: prices(1_000, 1), end: types.Prices{}, wantErr: ErrMissingPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round := &types.RoundResult{
				RoundType:     tt.roundType,
				StartPriceBTC: tt.start.BTC,
				StartPriceSOL: tt.start.SOL,
				RoundStart:    baseTime,
				RoundEnd:      baseTime.Add(time.Minute),
			}
			result, err := r.Resolve(context.Background(), tt.session, round, tt.previous, tt.end)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
			if !result.BelongsTo(tt.roundType) {
				t.Errorf("answer %s does not belong to %s", result, tt.roundType)
			}
		})
	}
}

func prices(btc, sol uint64) types.Prices {
	return types.Prices{BTC: &btc, SOL: &sol}
}

func TestScoreRanker(t *testing.T) {
	t1 := baseTime.Add(time.Second)
	t2 := baseTime.Add(2 * time.Second)

	entries := []*types.PlayerEntry{
		{Player: "low", EntrySlot: 1, TotalScore: 100, AllRoundsCompleted: true},
		{Player: "missed", EntrySlot: 2, TotalScore: 900},
		{Player: "slow", EntrySlot: 3, TotalScore: 300, AvgResponseTime: 20 * time.Second, AllRoundsCompleted: true},
		{Player: "fast", EntrySlot: 4, TotalScore: 300, AvgResponseTime: 10 * time.Second, AllRoundsCompleted: true},
		{Player: "late", EntrySlot: 5, TotalScore: 300, AvgResponseTime: 10 * time.Second, FirstPredictionAt: &t2, AllRoundsCompleted: true},
		{Player: "early", EntrySlot: 6, TotalScore: 300, AvgResponseTime: 10 * time.Second, FirstPredictionAt: &t1, AllRoundsCompleted: true},
		{Player: "early-twin", EntrySlot: 7, TotalScore: 300, AvgResponseTime: 10 * time.Second, FirstPredictionAt: &t1, AllRoundsCompleted: true},
	}

	ranked := ScoreRanker{}.Rank(entries)

	expected := []string{"early", "early-twin", "late", "fast", "slow", "low"}
	if len(ranked) != len(expected) {
		t.Fatalf("expected %d ranked players, got %d", len(expected), len(ranked))
	}
	for i, want := range expected {
		if ranked[i].Player != want {
			t.Errorf("position %d: expected %s, got %s", i+1, want, ranked[i].Player)
		}
	}
}
