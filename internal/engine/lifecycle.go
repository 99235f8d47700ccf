package engine

import (
	"context"
	"math"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// CreateParams describes a new session.
type CreateParams struct {
	SessionID string
	GameType  types.GameType
	StartTime time.Time
	EntryFee  uint64
}

// Create opens a Pending session owned by caller.
func (e *Engine) Create(ctx context.Context, caller string, p CreateParams, now time.Time) (*types.GameSession, error) {
	if caller == "" {
		return nil, fail(KindUnauthorized, "Caller identity is required")
	}
	if p.SessionID == "" {
		return nil, fail(KindValidationFailed, "Session id is required")
	}
	if !p.GameType.Valid() {
		return nil, fail(KindValidationFailed, "Invalid game type")
	}
	if !p.StartTime.After(now) {
		return nil, fail(KindValidationFailed, "Game start time must be in the future")
	}

	roundTypes := make([]types.RoundType, len(e.rules.RoundTypes))
	copy(roundTypes, e.rules.RoundTypes)

	session := &types.GameSession{
		ID:             p.SessionID,
		GameType:       p.GameType,
		Status:         types.StatusPending,
		Creator:        caller,
		CreatedAt:      now,
		StartTime:      p.StartTime,
		RoundCount:     e.rules.RoundCount,
		RoundDeadlines: e.rules.RoundDeadlines(p.StartTime),
		RoundTypes:     roundTypes,
		EntryFee:       p.EntryFee,
		PlatformFeeBps: e.rules.PlatformFeeBps,
		MaxPlayers:     e.rules.MaxPlayers,
		MinPlayers:     e.rules.MinPlayers,
	}

	if err := e.store.CreateSession(ctx, store.NewLedger(session)); err != nil {
		return nil, storeError(err)
	}

	e.logger.Info("Game created",
		zap.String("session_id", session.ID),
		zap.String("game_type", string(session.GameType)),
		zap.Time("start_time", session.StartTime),
		zap.Uint64("entry_fee", session.EntryFee),
	)
	return session, nil
}

// Join registers player in a Pending session and collects the entry fee.
func (e *Engine) Join(ctx context.Context, sessionID, player, username string, now time.Time) (*types.PlayerEntry, error) {
	if player == "" {
		return nil, fail(KindUnauthorized, "Caller identity is required")
	}

	var entry *types.PlayerEntry
	l, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if s.Status != types.StatusPending {
				return fail(KindInvalidState, "Game has already started, cannot join")
			}
			if s.TotalPlayers >= s.MaxPlayers {
				return fail(KindCapacityExceeded, "Game is full, maximum players reached")
			}
			if !now.Before(s.StartTime.Add(-e.rules.RegistrationClose)) {
				return fail(KindWindowClosed, "Cannot join game, registration closes 2 minutes before start")
			}
			if utf8.RuneCountInString(username) > e.rules.MaxUsernameLength {
				return fail(KindValidationFailed, "Username is too long (max 20 characters)")
			}
			if l.Entry(player) != nil {
				return fail(KindDuplicateAction, "Player has already joined this game")
			}

			pool, ok := addUint64(s.PrizePool, s.EntryFee)
			if !ok {
				return ErrArithmeticOverflow
			}

			entry = types.NewPlayerEntry(s.ID, player, username, s.TotalPlayers+1, s.RoundCount, now)
			l.PutEntry(entry)
			s.TotalPlayers++
			s.PrizePool = pool
			l.Touch()
			return nil
		},
		effect: func(ctx context.Context, l *store.Ledger) error {
			if err := e.vault.CollectEntryFee(ctx, l.Session.ID, player, l.Session.EntryFee); err != nil {
				return vaultError("Entry fee collection failed", err)
			}
			return nil
		},
		revert: func(ctx context.Context, l *store.Ledger) error {
			return e.vault.RefundEntryFee(ctx, l.Session.ID, player, l.Session.EntryFee)
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Player joined game",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Int("entry_slot", entry.EntrySlot),
		zap.Int("total_players", l.Session.TotalPlayers),
		zap.Uint64("prize_pool", l.Session.PrizePool),
	)
	return entry, nil
}

// Start activates a Pending session and opens round 1.
func (e *Engine) Start(ctx context.Context, caller, sessionID string, prices types.Prices, now time.Time) (*types.GameSession, error) {
	l, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusPending {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if !now.After(s.StartTime) {
				return fail(KindWindowClosed, "Game has Not started yet")
			}
			if s.TotalPlayers < s.MinPlayers {
				return fail(KindCapacityExceeded, "Not enough players to start game")
			}

			started := now
			s.Status = types.StatusActive
			s.CurrentRound = 1
			s.ActualStartTime = &started
			l.Touch()
			l.PutRound(e.openRound(s, 1, prices, now))
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Game started",
		zap.String("session_id", sessionID),
		zap.Int("total_players", l.Session.TotalPlayers),
		zap.Uint64("prize_pool", l.Session.PrizePool),
	)
	return l.Session, nil
}

// Advance opens nextRound, which must directly follow the current round.
func (e *Engine) Advance(ctx context.Context, caller, sessionID string, nextRound int, prices types.Prices, now time.Time) (*types.RoundResult, error) {
	var result *types.RoundResult
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusActive {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if nextRound != s.CurrentRound+1 || nextRound > s.RoundCount {
				return fail(KindValidationFailed, "Wrong round number provided")
			}

			s.CurrentRound = nextRound
			l.Touch()
			result = e.openRound(s, nextRound, prices, now)
			l.PutRound(result)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Round advanced",
		zap.String("session_id", sessionID),
		zap.Int("round", nextRound),
		zap.String("round_type", string(result.RoundType)),
	)
	return result, nil
}

func (e *Engine) openRound(s *types.GameSession, n int, prices types.Prices, now time.Time) *types.RoundResult {
	return &types.RoundResult{
		SessionID:     s.ID,
		RoundNumber:   n,
		RoundType:     s.RoundType(n),
		StartPriceBTC: prices.BTC,
		StartPriceSOL: prices.SOL,
		RoundStart:    now,
		RoundEnd:      now.Add(e.rules.RoundDuration),
	}
}

// RecordOutcome attaches the authoritative answer and end prices to a
// closed round. The answer is trusted as supplied.
func (e *Engine) RecordOutcome(ctx context.Context, caller, sessionID string, round int, prices types.Prices, correct types.Choice, now time.Time) (*types.RoundResult, error) {
	var result *types.RoundResult
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusActive {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			r := l.Round(round)
			if r == nil {
				return fail(KindNotFound, "Round result not found")
			}
			if PhaseAt(r.RoundEnd, e.rules.Lockout, now) != PhaseClosed {
				return fail(KindWindowClosed, "Round has not ended yet, cannot record outcome")
			}
			if r.CorrectAnswer != nil {
				return fail(KindDuplicateAction, "Outcome has already been recorded for this round")
			}
			if !correct.BelongsTo(r.RoundType) {
				return fail(KindValidationFailed, "Invalid prediction choice for this round type")
			}

			changeBTC, err := priceChange(r.StartPriceBTC, prices.BTC)
			if err != nil {
				return err
			}
			changeSOL, err := priceChange(r.StartPriceSOL, prices.SOL)
			if err != nil {
				return err
			}

			answer := correct
			evaluated := now
			r.EndPriceBTC = prices.BTC
			r.EndPriceSOL = prices.SOL
			r.PriceChangeBTC = changeBTC
			r.PriceChangeSOL = changeSOL
			r.CorrectAnswer = &answer
			r.EvaluatedAt = &evaluated
			l.PutRound(r)
			result = r
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Round outcome recorded",
		zap.String("session_id", sessionID),
		zap.Int("round", round),
		zap.String("correct_answer", string(correct)),
		zap.Int64("price_change_btc", result.PriceChangeBTC),
		zap.Int64("price_change_sol", result.PriceChangeSOL),
	)
	return result, nil
}

// Complete closes an Active session and finalizes its leaderboard.
func (e *Engine) Complete(ctx context.Context, caller, sessionID string, now time.Time) (*types.GameSession, error) {
	l, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusActive {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}

			ended := now
			s.Status = types.StatusCompleted
			s.LeaderboardFinalized = true
			s.EndTime = &ended
			l.Touch()
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Game completed", zap.String("session_id", sessionID))
	return l.Session, nil
}

// Cancel terminates a Pending session. Entry fees are returned through Refund.
func (e *Engine) Cancel(ctx context.Context, caller, sessionID string, now time.Time) (*types.GameSession, error) {
	l, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusPending {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}

			ended := now
			s.Status = types.StatusCancelled
			s.EndTime = &ended
			l.Touch()
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Game cancelled",
		zap.String("session_id", sessionID),
		zap.Int("total_players", l.Session.TotalPlayers),
	)
	return l.Session, nil
}

// Refund returns the entry fee of a cancelled session to its owner, once.
func (e *Engine) Refund(ctx context.Context, caller, sessionID, player string, now time.Time) (*types.PlayerEntry, error) {
	var entry *types.PlayerEntry
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			if l.Session.Status != types.StatusCancelled {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			entry = l.Entry(player)
			if entry == nil {
				return fail(KindNotFound, "Player has not joined this game")
			}
			if caller != entry.Player {
				return fail(KindUnauthorized, "Unauthorized: Only the entry owner can perform this action")
			}
			if entry.EntryRefunded {
				return fail(KindDuplicateAction, "Entry fee has already been refunded")
			}
			if l.Session.PrizePool < l.Session.EntryFee {
				return ErrArithmeticOverflow
			}
			entry.EntryRefunded = true
			l.PutEntry(entry)
			l.Session.PrizePool -= l.Session.EntryFee
			l.Touch()
			return nil
		},
		effect: func(ctx context.Context, l *store.Ledger) error {
			if err := e.vault.RefundEntryFee(ctx, sessionID, player, l.Session.EntryFee); err != nil {
				return vaultError("Entry fee refund failed", err)
			}
			return nil
		},
		revert: func(ctx context.Context, l *store.Ledger) error {
			return e.vault.CollectEntryFee(ctx, sessionID, player, l.Session.EntryFee)
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Entry fee refunded",
		zap.String("session_id", sessionID),
		zap.String("player", player),
	)
	return entry, nil
}

func requireCreator(s *types.GameSession, caller string) error {
	if caller != s.Creator {
		return fail(KindUnauthorized, "Unauthorized: Only game creator can perform this action")
	}
	return nil
}

// priceChange is end - start as a signed value. A missing side yields 0.
func priceChange(start, end *uint64) (int64, error) {
	if start == nil || end == nil {
		return 0, nil
	}
	if *start > math.MaxInt64 || *end > math.MaxInt64 {
		return 0, ErrArithmeticOverflow
	}
	return int64(*end) - int64(*start), nil
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
