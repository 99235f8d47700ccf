package engine

import (
	"context"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// RoundProgress counts submissions and evaluations of one round.
type RoundProgress struct {
	Round     int  `json:"round"`
	Opened    bool `json:"opened"`
	Recorded  bool `json:"outcome_recorded"`
	Submitted int  `json:"submitted"`
	Evaluated int  `json:"evaluated"`
}

// Progress is a read-only aggregate over a session's entries, used to decide
// when ranking and completion may safely proceed.
type Progress struct {
	SessionID          string          `json:"session_id"`
	Status             types.Status    `json:"status"`
	CurrentRound       int             `json:"current_round"`
	Players            int             `json:"players"`
	Rounds             []RoundProgress `json:"rounds"`
	FullyEvaluated     int             `json:"fully_evaluated"`
	Ranked             int             `json:"ranked"`
	Unrankable         int             `json:"unrankable"`
	PendingEvaluations int             `json:"pending_evaluations"`
	ReadyToComplete    bool            `json:"ready_to_complete"`
}

// Progress reports how far the operator saga has come for a session.
//
// A player who missed a round can never reach all_rounds_completed and is
// counted as unrankable once that round closed without a submission.
// The session is ready to complete when it is Active, the last round's
// outcome is recorded, no evaluation is pending and every rankable player
// has a rank.
func (e *Engine) Progress(ctx context.Context, sessionID string) (*Progress, error) {
	l, err := e.view(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s := l.Session
	p := &Progress{
		SessionID:    s.ID,
		Status:       s.Status,
		CurrentRound: s.CurrentRound,
		Players:      s.TotalPlayers,
		Rounds:       make([]RoundProgress, s.RoundCount),
	}
	for i := range p.Rounds {
		n := i + 1
		r := l.Round(n)
		p.Rounds[i] = RoundProgress{
			Round:    n,
			Opened:   r != nil,
			Recorded: r != nil && r.CorrectAnswer != nil,
		}
	}

	for _, entry := range l.EntriesBySlot() {
		missed := false
		for i, pred := range entry.Predictions {
			if pred == nil {
				// Rounds before the current one are over for submissions
				if i+1 < s.CurrentRound || (i+1 == s.CurrentRound && p.Rounds[i].Recorded) {
					missed = true
				}
				continue
			}
			p.Rounds[i].Submitted++
			if pred.Evaluated() {
				p.Rounds[i].Evaluated++
			} else if p.Rounds[i].Recorded {
				p.PendingEvaluations++
			}
		}

		switch {
		case entry.FinalRank != nil:
			p.Ranked++
			p.FullyEvaluated++
		case entry.AllRoundsCompleted:
			p.FullyEvaluated++
		case missed:
			p.Unrankable++
		}
	}

	lastRecorded := s.RoundCount > 0 && p.Rounds[s.RoundCount-1].Recorded
	p.ReadyToComplete = s.Status == types.StatusActive &&
		lastRecorded &&
		p.PendingEvaluations == 0 &&
		p.Ranked == p.FullyEvaluated &&
		p.FullyEvaluated+p.Unrankable == p.Players
	return p, nil
}

// Session returns the session header.
func (e *Engine) Session(ctx context.Context, sessionID string) (*types.GameSession, error) {
	l, err := e.view(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return l.Session, nil
}

// Entry returns one player's entry.
func (e *Engine) Entry(ctx context.Context, sessionID, player string) (*types.PlayerEntry, error) {
	l, err := e.view(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entry := l.Entry(player)
	if entry == nil {
		return nil, fail(KindNotFound, "Player has not joined this game")
	}
	return entry, nil
}

// Entries lists every entry of a session in arrival order.
func (e *Engine) Entries(ctx context.Context, sessionID string) ([]*types.PlayerEntry, error) {
	l, err := e.view(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return l.EntriesBySlot(), nil
}

// Round returns the result record of one round.
func (e *Engine) Round(ctx context.Context, sessionID string, round int) (*types.RoundResult, error) {
	l, err := e.view(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r := l.Round(round)
	if r == nil {
		return nil, fail(KindNotFound, "Round result not found")
	}
	return r, nil
}
