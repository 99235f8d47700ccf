package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Evaluate scores one player's prediction for one closed round against the
// recorded answer and updates the player aggregates and the round tallies.
func (e *Engine) Evaluate(ctx context.Context, caller, sessionID, player string, round int, now time.Time) (*types.RoundPrediction, error) {
	var prediction *types.RoundPrediction
	var total uint32
	_, err := e.update(ctx, sessionID, mutation{
		apply: func(l *store.Ledger) error {
			s := l.Session
			if err := requireCreator(s, caller); err != nil {
				return err
			}
			if s.Status != types.StatusActive {
				return fail(KindInvalidState, "Invalid game status for this operation")
			}
			if round < 1 || round > s.RoundCount {
				return fail(KindValidationFailed, "Wrong round number provided")
			}

			r := l.Round(round)
			if r == nil {
				return fail(KindNotFound, "Round result not found")
			}
			if PhaseAt(r.RoundEnd, e.rules.Lockout, now) != PhaseClosed {
				return fail(KindWindowClosed, "Round has not ended yet, cannot evaluate")
			}

			entry := l.Entry(player)
			if entry == nil {
				return fail(KindNotFound, "Player has not joined this game")
			}
			prediction = entry.Prediction(round)
			if prediction == nil {
				return fail(KindNotFound, "Player did not make a prediction for this round")
			}
			if prediction.Evaluated() {
				return fail(KindDuplicateAction, "This round has already been evaluated for this player")
			}
			if r.CorrectAnswer == nil {
				return fail(KindNotFound, "Round outcome has not been recorded yet")
			}

			points := Points(r.RoundType, prediction.Choice, *r.CorrectAnswer)
			sum := entry.TotalScore + points
			if sum < entry.TotalScore {
				return ErrArithmeticOverflow
			}

			prediction.PointsEarned = points
			prediction.IsCorrect = points == PointsExact
			prediction.State = types.EvalEvaluated
			entry.Scores[round-1] = points
			entry.TotalScore = sum
			entry.RoundsEvaluated++
			if entry.RoundsEvaluated == s.RoundCount {
				entry.AllRoundsCompleted = true
				entry.AvgResponseTime = entry.TotalResponseTime / time.Duration(s.RoundCount)
			}
			l.PutEntry(entry)

			r.TotalPredictions++
			switch classify(points) {
			case tallyCorrect:
				r.Correct++
			case tallyPartial:
				r.Partial++
			default:
				r.Wrong++
			}
			l.PutRound(r)

			total = entry.TotalScore
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Prediction evaluated",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.Int("round", round),
		zap.Uint32("points", prediction.PointsEarned),
		zap.Uint32("total_score", total),
	)
	return prediction, nil
}
