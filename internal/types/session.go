package types

import "time"

// GameType selects which assets a session is played on.
type GameType string

const (
	GameBtcOnly  GameType = "btc_only"
	GameSolOnly  GameType = "sol_only"
	GameBtcVsSol GameType = "btc_vs_sol"
)

// Valid reports whether g is a known game type.
func (g GameType) Valid() bool {
	return g == GameBtcOnly || g == GameSolOnly || g == GameBtcVsSol
}

// Status is the lifecycle state of a GameSession.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// GameSession is the header record of one competition.
type GameSession struct {
	ID              string      `json:"id"`
	GameType        GameType    `json:"game_type"`
	Status          Status      `json:"status"`
	Creator         string      `json:"creator"` // sole authority for lifecycle calls
	CreatedAt       time.Time   `json:"created_at"`
	StartTime       time.Time   `json:"start_time"`
	ActualStartTime *time.Time  `json:"actual_start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	RoundCount      int         `json:"round_count"`
	RoundDeadlines  []time.Time `json:"round_deadlines"`
	RoundTypes      []RoundType `json:"round_types"`
	CurrentRound    int         `json:"current_round"` // 0 before start, 1..RoundCount during play

	EntryFee             uint64 `json:"entry_fee"`
	PrizePool            uint64 `json:"prize_pool"`
	PlatformFeeBps       uint16 `json:"platform_fee_bps"`
	PlatformFeeCollected bool   `json:"platform_fee_collected"`

	TotalPlayers int `json:"total_players"`
	MaxPlayers   int `json:"max_players"`
	MinPlayers   int `json:"min_players"`

	LeaderboardFinalized bool    `json:"leaderboard_finalized"`
	TopScorer            *string `json:"top_scorer,omitempty"`
	HighestScore         uint32  `json:"highest_score"`
}

// RoundType returns the type of round n (1-based), or "" when out of range.
func (s *GameSession) RoundType(n int) RoundType {
	if n < 1 || n > len(s.RoundTypes) {
		return ""
	}
	return s.RoundTypes[n-1]
}

// EvalState tags whether a stored prediction has been scored.
type EvalState string

const (
	EvalPending   EvalState = "pending"
	EvalEvaluated EvalState = "evaluated"
)

// RoundPrediction is one player's answer for one round.
type RoundPrediction struct {
	Round        int           `json:"round"`
	Choice       Choice        `json:"choice"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	ResponseTime time.Duration `json:"response_time"` // SubmittedAt - round start
	PointsEarned uint32        `json:"points_earned"`
	IsCorrect    bool          `json:"is_correct"`
	State        EvalState     `json:"state"`
}

// Evaluated reports whether the prediction has already been scored.
func (p *RoundPrediction) Evaluated() bool {
	return p.State == EvalEvaluated
}

// PlayerEntry is the per (session, player) ledger, created on join.
type PlayerEntry struct {
	SessionID string    `json:"session_id"`
	Player    string    `json:"player"`
	Username  string    `json:"username"`
	EntrySlot int       `json:"entry_slot"` // 1-based arrival order
	JoinedAt  time.Time `json:"joined_at"`

	Predictions        []*RoundPrediction `json:"predictions"` // one slot per round, nil until submitted
	Scores             []uint32           `json:"scores"`
	TotalScore         uint32             `json:"total_score"`
	RoundsEvaluated    int                `json:"rounds_evaluated"`
	AllRoundsCompleted bool               `json:"all_rounds_completed"`

	FinalRank     *uint16 `json:"final_rank,omitempty"`
	PrizeAmount   uint64  `json:"prize_amount"`
	PrizeClaimed  bool    `json:"prize_claimed"`
	EntryRefunded bool    `json:"entry_refunded"`

	TotalResponseTime time.Duration `json:"total_response_time"`
	AvgResponseTime   time.Duration `json:"avg_response_time"`
	FirstPredictionAt *time.Time    `json:"first_prediction_at,omitempty"` // round 1 only, tie-break reference
}

// NewPlayerEntry builds an entry whose per-round sequences are sized to roundCount.
func NewPlayerEntry(sessionID, player, username string, slot, roundCount int, joinedAt time.Time) *PlayerEntry {
	return &PlayerEntry{
		SessionID:   sessionID,
		Player:      player,
		Username:    username,
		EntrySlot:   slot,
		JoinedAt:    joinedAt,
		Predictions: make([]*RoundPrediction, roundCount),
		Scores:      make([]uint32, roundCount),
	}
}

// Prediction returns the stored prediction for round n (1-based) or nil.
func (e *PlayerEntry) Prediction(round int) *RoundPrediction {
	if round < 1 || round > len(e.Predictions) {
		return nil
	}
	return e.Predictions[round-1]
}

// HasPredicted reports whether the player already answered round n.
func (e *PlayerEntry) HasPredicted(round int) bool {
	return e.Prediction(round) != nil
}

// Prices carries optional normalized prices (micro-dollars) for both assets.
type Prices struct {
	BTC *uint64 `json:"btc,omitempty"`
	SOL *uint64 `json:"sol,omitempty"`
}

// RoundResult is the per (session, round) outcome record, created when the round opens.
type RoundResult struct {
	SessionID   string    `json:"session_id"`
	RoundNumber int       `json:"round_number"`
	RoundType   RoundType `json:"round_type"`

	StartPriceBTC  *uint64 `json:"start_price_btc,omitempty"`
	StartPriceSOL  *uint64 `json:"start_price_sol,omitempty"`
	EndPriceBTC    *uint64 `json:"end_price_btc,omitempty"`
	EndPriceSOL    *uint64 `json:"end_price_sol,omitempty"`
	PriceChangeBTC int64   `json:"price_change_btc"`
	PriceChangeSOL int64   `json:"price_change_sol"`
	CorrectAnswer  *Choice `json:"correct_answer,omitempty"`

	RoundStart  time.Time  `json:"round_start"`
	RoundEnd    time.Time  `json:"round_end"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`

	TotalPredictions int `json:"total_predictions"`
	Correct          int `json:"correct"`
	Partial          int `json:"partial"`
	Wrong            int `json:"wrong"`
}
