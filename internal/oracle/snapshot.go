// Package oracle turns raw price feed observations into validated snapshots.
// Only snapshots with StatusValid may be handed to the engine.
package oracle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Asset is a priced instrument.
type Asset string

const (
	AssetBTC Asset = "BTC"
	AssetSOL Asset = "SOL"
)

// Phase marks whether a snapshot opens or closes a round.
type Phase string

const (
	PhaseStart Phase = "START"
	PhaseEnd   Phase = "END"
)

// Status is the validation verdict of a snapshot.
type Status string

const (
	StatusValid                  Status = "valid"
	StatusStale                  Status = "stale"
	StatusLowConfidence          Status = "low_confidence"
	StatusInsufficientPublishers Status = "insufficient_publishers"
	StatusUnavailable            Status = "unavailable"
	StatusFailed                 Status = "failed"
)

// Feed status codes reported by the publisher network
const (
	FeedUnknown uint32 = 0
	FeedTrading uint32 = 1
	FeedHalted  uint32 = 2
	FeedAuction uint32 = 3
)

// MicroDollars is the fixed-point scale of normalized prices.
const MicroDollars = 1_000_000

// maxExponent bounds the feed exponent accepted by Normalize
const maxExponent = 18

// Errors
var (
	ErrStale                  = &OracleError{Message: "Price data is too old (stale), refresh required"}
	ErrLowConfidence          = &OracleError{Message: "Price confidence interval is too high (unreliable)"}
	ErrInsufficientPublishers = &OracleError{Message: "Not enough publishers contributing to price"}
	ErrUnavailable            = &OracleError{Message: "Pyth reports price as unavailable or halted"}
	ErrNegativePrice          = &OracleError{Message: "Price cannot be negative"}
	ErrInvalidExponent        = &OracleError{Message: "Price exponent out of range"}
	ErrPriceOverflow          = &OracleError{Message: "Normalized price does not fit in 64 bits"}
	ErrNotValid               = &OracleError{Message: "Snapshot is not valid"}
	ErrDuplicateAsset         = &OracleError{Message: "More than one snapshot for the same asset"}
	ErrUnknownAsset           = &OracleError{Message: "Unknown asset"}
)

// OracleError represents an oracle rejection
type OracleError struct {
	Message string
}

func (e *OracleError) Error() string {
	return e.Message
}

// Observation is one raw reading from a price feed.
type Observation struct {
	Asset       Asset     `json:"asset"`
	Price       int64     `json:"price"`
	Exponent    int32     `json:"exponent"`
	Confidence  uint64    `json:"confidence"`
	PublishTime time.Time `json:"publish_time"`
	Publishers  uint32    `json:"publishers"`
	FeedStatus  uint32    `json:"feed_status"`
}

// Snapshot is a validated observation bound to a session round.
type Snapshot struct {
	SessionID       string        `json:"session_id"`
	RoundNumber     int           `json:"round_number"`
	Asset           Asset         `json:"asset"`
	Phase           Phase         `json:"phase"`
	Price           int64         `json:"price"`
	Exponent        int32         `json:"exponent"`
	NormalizedPrice uint64        `json:"normalized_price"`
	Confidence      uint64        `json:"confidence"`
	PublishTime     time.Time     `json:"publish_time"`
	SnapshotTime    time.Time     `json:"snapshot_time"`
	Staleness       time.Duration `json:"staleness"`
	Publishers      uint32        `json:"publishers"`
	Status          Status        `json:"status"`
}

// Valid reports whether the snapshot may be consumed.
func (s *Snapshot) Valid() bool {
	return s != nil && s.Status == StatusValid
}

// Normalize converts price * 10^exponent dollars into micro-dollars,
// truncating sub-micro fractions.
func Normalize(price int64, exponent int32) (uint64, error) {
	if price < 0 {
		return 0, ErrNegativePrice
	}
	if exponent < -maxExponent || exponent > maxExponent {
		return 0, ErrInvalidExponent
	}

	micro := decimal.New(price, exponent).Shift(6).Truncate(0).BigInt()
	if !micro.IsUint64() {
		return 0, ErrPriceOverflow
	}
	return micro.Uint64(), nil
}

// Prices collects the normalized prices of Valid snapshots, at most one per asset.
func Prices(snapshots ...*Snapshot) (types.Prices, error) {
	var p types.Prices
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		if !s.Valid() {
			return types.Prices{}, fmt.Errorf("%w: %s is %s", ErrNotValid, s.Asset, s.Status)
		}

		price := s.NormalizedPrice
		switch s.Asset {
		case AssetBTC:
			if p.BTC != nil {
				return types.Prices{}, fmt.Errorf("%w: %s", ErrDuplicateAsset, s.Asset)
			}
			p.BTC = &price
		case AssetSOL:
			if p.SOL != nil {
				return types.Prices{}, fmt.Errorf("%w: %s", ErrDuplicateAsset, s.Asset)
			}
			p.SOL = &price
		default:
			return types.Prices{}, fmt.Errorf("%w: %q", ErrUnknownAsset, s.Asset)
		}
	}
	return p, nil
}

// AssetsFor returns the assets priced in a game of type g.
func AssetsFor(g types.GameType) []Asset {
	switch g {
	case types.GameBtcOnly:
		return []Asset{AssetBTC}
	case types.GameSolOnly:
		return []Asset{AssetSOL}
	case types.GameBtcVsSol:
		return []Asset{AssetBTC, AssetSOL}
	}
	return nil
}
