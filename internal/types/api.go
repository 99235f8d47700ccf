package types

import "time"

// PriceObservation is a raw price feed reading as sent by operators.
type PriceObservation struct {
	Asset       string    `json:"asset"` // "BTC" or "SOL"
	Price       int64     `json:"price"`
	Exponent    int32     `json:"exponent"`
	Confidence  uint64    `json:"confidence"`
	PublishTime time.Time `json:"publish_time"`
	Publishers  uint32    `json:"publishers"`
	FeedStatus  uint32    `json:"feed_status"` // 1 = trading
}

// CreateSessionRequest represents a request to create a session
type CreateSessionRequest struct {
	ID        string   `json:"id,omitempty"` // generated when empty
	GameType  GameType `json:"game_type"`
	StartTime string   `json:"start_time"` // RFC3339
	EntryFee  uint64   `json:"entry_fee"`
}

// JoinSessionRequest represents a request to join a session as the caller
type JoinSessionRequest struct {
	Username string `json:"username"`
}

// StartSessionRequest carries the round 1 start prices
type StartSessionRequest struct {
	Observations []PriceObservation `json:"observations"`
}

// AdvanceRoundRequest opens the next round
type AdvanceRoundRequest struct {
	Round        int                `json:"round"`
	Observations []PriceObservation `json:"observations"`
}

// SubmitPredictionRequest represents a prediction by the caller
type SubmitPredictionRequest struct {
	Round  int    `json:"round"`
	Choice Choice `json:"choice"`
}

// RecordOutcomeRequest attaches the correct answer and end prices to a round
type RecordOutcomeRequest struct {
	Answer       Choice             `json:"answer"`
	Observations []PriceObservation `json:"observations"`
}

// EvaluateRequest scores one player's prediction
type EvaluateRequest struct {
	Player string `json:"player"`
}

// RankRequest assigns a final rank
type RankRequest struct {
	Player string `json:"player"`
	Rank   uint16 `json:"rank"`
}

// PlatformFeeResponse represents a collected platform fee
type PlatformFeeResponse struct {
	SessionID string `json:"session_id"`
	Fee       uint64 `json:"fee"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreditRequest credits a player's vault balance
type CreditRequest struct {
	Player string `json:"player"`
	Amount uint64 `json:"amount"`
}

// BalanceResponse represents a player's vault balance
type BalanceResponse struct {
	Player  string `json:"player"`
	Balance uint64 `json:"balance"`
}
