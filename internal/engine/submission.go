package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Submit stores player's single answer for the current round. Only the
// entry owner may submit, and only before the round's lockout begins.
func (e *Engine) Submit(ctx context.Context, caller, sessionID, player string, round int, choice types.Choice, now time.Time) (*types.RoundPrediction, error) {
	var prediction *types.RoundPrediction
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if s.Status != types.StatusActive {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if round < 1 || round > s.RoundCount || round != s.CurrentRound {
				return fail(KindValidationFailed, "Wrong round number provided")
			}

			entry := l.Entry(player)
			if entry == nil {
				return fail(KindNotFound, "Player has not joined this game")
			}
			if caller != entry.Player {
				return fail(KindUnauthorized, "Unauthorized: Only the entry owner can perform this action")
			}
			if entry.HasPredicted(round) {
				return fail(KindDuplicateAction, "Player has already submitted prediction for this round")
			}

			r := l.Round(round)
			if r == nil {
				return fail(KindNotFound, "Round result not found")
			}
			switch PhaseAt(r.RoundEnd, e.rules.Lockout, now) {
			case PhaseClosed:
				return fail(KindWindowClosed, "Prediction window has closed for this round")
			case PhaseLocked:
				if !now.Before(r.RoundEnd) {
					return fail(KindWindowClosed, "Prediction window has closed for this round")
				}
				return fail(KindWindowClosed, "Cannot predict in last 5 seconds (anti-cheat)")
			}

			if !choice.BelongsTo(r.RoundType) {
				return fail(KindValidationFailed, "Invalid prediction choice for this round type")
			}

			responseTime := now.Sub(r.RoundStart)
			if responseTime < 0 {
				return fail(KindWindowClosed, "Round has not opened yet")
			}
			total := entry.TotalResponseTime + responseTime
			if total < entry.TotalResponseTime {
				return ErrArithmeticOverflow
			}

			prediction = &types.RoundPrediction{
				Round:        round,
				Choice:       choice,
				SubmittedAt:  now,
				ResponseTime: responseTime,
				State:        types.EvalPending,
			}
			entry.Predictions[round-1] = prediction
			entry.TotalResponseTime = total
			if round == 1 {
				first := now
				entry.FirstPredictionAt = &first
			}
			l.PutEntry(entry)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Prediction submitted",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Int("round", round),
		zap.String("choice", string(choice)),
		zap.Duration("response_time", prediction.ResponseTime),
	)
	return prediction, nil
}
