package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// FinalizeRank records the externally decided rank of a fully evaluated
// player and computes the prize owed for it.
func (e *Engine) FinalizeRank(ctx context.Context, caller, sessionID, player string, rank uint16, now time.Time) (*types.PlayerEntry, error) {
	var entry *types.PlayerEntry
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusActive {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if rank < 1 {
				return fail(KindValidationFailed, "Rank must be at least 1")
			}

			entry = l.Entry(player)
			if entry == nil {
				return fail(KindNotFound, "Player has not joined this game")
			}
			if !entry.AllRoundsCompleted {
				return fail(KindInvalidState, "Not all players have been evaluated yet")
			}
			if entry.FinalRank != nil {
				return fail(KindDuplicateAction, "Player has already been ranked")
			}

			r := rank
			entry.FinalRank = &r
			entry.PrizeAmount = PrizeAmount(rank, s.PrizePool, s.PlatformFeeBps)
			l.PutEntry(entry)

			if rank == 1 {
				top := entry.Player
				s.TopScorer = &top
				s.HighestScore = entry.TotalScore
				l.Touch()
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Player ranked",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Uint16("rank", rank),
		zap.Uint32("total_score", entry.TotalScore),
		zap.Uint64("prize", entry.PrizeAmount),
	)
	return entry, nil
}

// Claim authorizes the prize of a winning player and has the vault release it.
func (e *Engine) Claim(ctx context.Context, caller, sessionID, player string, now time.Time) (*types.PlayerEntry, error) {
	var entry *types.PlayerEntry
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if s.Status != types.StatusCompleted {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if !s.LeaderboardFinalized {
				return fail(KindInvalidState, "Leaderboard has not been finalized yet")
			}

			entry = l.Entry(player)
			if entry == nil {
				return fail(KindNotFound, "Player has not joined this game")
			}
			if caller != entry.Player {
				return fail(KindUnauthorized, "Unauthorized: Only the entry owner can perform this action")
			}
			if entry.FinalRank == nil {
				return fail(KindInvalidState, "Leaderboard has not been finalized yet")
			}
			if *entry.FinalRank > MaxRewardedRank {
				return fail(KindInvalidState, "Player is not a winner (rank > 10)")
			}
			if entry.PrizeClaimed {
				return fail(KindDuplicateAction, "Prize has already been claimed")
			}

			entry.PrizeClaimed = true
			l.PutEntry(entry)
			return nil
		},
		effect: func(ctx context.Context, l *store.Ledger) error {
			if entry.PrizeAmount == 0 {
				return nil
			}
			if err := e.vault.ReleasePrize(ctx, sessionID, player, *entry.FinalRank, entry.PrizeAmount); err != nil {
				return vaultError("Prize release failed", err)
			}
			return nil
		},
		revert: func(ctx context.Context, l *store.Ledger) error {
			if entry.PrizeAmount == 0 {
				return nil
			}
			return e.vault.ReturnPrize(ctx, sessionID, player, entry.PrizeAmount)
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Prize claimed",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Uint16("rank", *entry.FinalRank),
		zap.Uint64("prize", entry.PrizeAmount),
	)
	return entry, nil
}

// CollectPlatformFee moves the platform share of a completed session's pool
// to the fee account, once per session.
func (e *Engine) CollectPlatformFee(ctx context.Context, caller, sessionID string, now time.Time) (uint64, error) {
	var fee uint64
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusCompleted {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if s.PlatformFeeCollected {
				return fail(KindDuplicateAction, "Platform fee has already been collected")
			}

			fee = PlatformFee(s.PrizePool, s.PlatformFeeBps)
			s.PlatformFeeCollected = true
			l.Touch()
			return nil
		},
		effect: func(ctx context.Context, l *store.Ledger) error {
			if fee == 0 {
				return nil
			}
			if err := e.vault.CollectPlatformFee(ctx, sessionID, fee); err != nil {
				return vaultError("Platform fee collection failed", err)
			}
			return nil
		},
		revert: func(ctx context.Context, l *store.Ledger) error {
			if fee == 0 {
				return nil
			}
			return e.vault.ReturnPlatformFee(ctx, sessionID, fee)
		},
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("Platform fee collected",
		zap.String("session_id", sessionID),
		zap.Uint64("amount", fee),
	)
	return fee, nil
}
