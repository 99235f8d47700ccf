package oracle

import (
	"time"

	"go.uber.org/zap"
)

// Default thresholds
const (
	DefaultStaleness = 60 * time.Second
	// DefaultConfidence is in raw feed units, not scaled by the exponent.
	// Live Hermes BTC and SOL feeds (exponent -8) report far more than this,
	// so production deployments must raise ORACLE_CONFIDENCE_MAX.
	DefaultConfidence    = 1000
	DefaultMinPublishers = 3
)

// Thresholds bound what counts as a usable observation.
type Thresholds struct {
	Staleness     time.Duration
	Confidence    uint64 // raw feed units
	MinPublishers uint32
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Staleness:     DefaultStaleness,
		Confidence:    DefaultConfidence,
		MinPublishers: DefaultMinPublishers,
	}
}

// Validator classifies observations and builds snapshots.
type Validator struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewValidator creates a validator with the given thresholds
func NewValidator(t Thresholds, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{thresholds: t, logger: logger}
}

// Thresholds returns the configured thresholds.
func (v *Validator) Thresholds() Thresholds {
	return v.thresholds
}

// Check returns the status of obs at time now and, for anything but
// StatusValid, the reason.
//
// The feed status is checked first, then staleness, confidence and the
// publisher count.
func (v *Validator) Check(obs Observation, now time.Time) (Status, error) {
	if obs.FeedStatus != FeedTrading {
		return StatusUnavailable, ErrUnavailable
	}
	if staleness(obs.PublishTime, now) > v.thresholds.Staleness {
		return StatusStale, ErrStale
	}
	if obs.Confidence > v.thresholds.Confidence {
		return StatusLowConfidence, ErrLowConfidence
	}
	if obs.Publishers < v.thresholds.MinPublishers {
		return StatusInsufficientPublishers, ErrInsufficientPublishers
	}
	return StatusValid, nil
}

// Snapshot validates obs and binds it to a session round. A price that cannot
// be normalized yields StatusFailed.
func (v *Validator) Snapshot(sessionID string, round int, phase Phase, obs Observation, now time.Time) *Snapshot {
	s := &Snapshot{
		SessionID:    sessionID,
		RoundNumber:  round,
		Asset:        obs.Asset,
		Phase:        phase,
		Price:        obs.Price,
		Exponent:     obs.Exponent,
		Confidence:   obs.Confidence,
		PublishTime:  obs.PublishTime,
		SnapshotTime: now,
		Staleness:    staleness(obs.PublishTime, now),
		Publishers:   obs.Publishers,
	}

	status, reason := v.Check(obs, now)
	if status == StatusValid {
		normalized, err := Normalize(obs.Price, obs.Exponent)
		if err != nil {
			status, reason = StatusFailed, err
		}
		s.NormalizedPrice = normalized
	}
	s.Status = status

	if reason != nil {
		v.logger.Warn("Price snapshot rejected",
			zap.String("session_id", sessionID),
			zap.Int("round", round),
			zap.String("asset", string(obs.Asset)),
			zap.String("phase", string(phase)),
			zap.String("status", string(status)),
			zap.Error(reason),
		)
	}
	return s
}

func staleness(publish, now time.Time) time.Duration {
	if d := now.Sub(publish); d > 0 {
		return d
	}
	return 0
}
