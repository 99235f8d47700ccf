package engine

import (
	"fmt"
	"time"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Point values awarded per round.
const (
	PointsExact   uint32 = 100
	PointsPartial uint32 = 50 // magnitude bucket one step away
	PointsCloser  uint32 = 60 // range zone one step away
	PointsFar     uint32 = 20 // range zone two steps away
	PointsWrong   uint32 = 0
)

// BpsDivisor is the basis point denominator (10 000 bps = 100%).
const BpsDivisor = 10_000

// Rules are the per-deployment game parameters. Every session captures the
// round count and the derived per-round sequences at creation time, so
// changing Rules never affects sessions already stored.
type Rules struct {
	RoundCount        int
	RoundTypes        []types.RoundType
	RoundDuration     time.Duration
	RoundGap          time.Duration
	Lockout           time.Duration // submissions rejected in the last Lockout of a round
	RegistrationClose time.Duration // joins rejected this long before start_time
	MaxPlayers        int
	MinPlayers        int
	PlatformFeeBps    uint16
	MaxUsernameLength int
}

// DefaultRules returns the standard five round game.
func DefaultRules() Rules {
	roundTypes := make([]types.RoundType, len(types.DefaultRoundTypes))
	copy(roundTypes, types.DefaultRoundTypes)

	return Rules{
		RoundCount:        5,
		RoundTypes:        roundTypes,
		RoundDuration:     60 * time.Second,
		RoundGap:          120 * time.Second,
		Lockout:           5 * time.Second,
		RegistrationClose: 120 * time.Second,
		MaxPlayers:        50,
		MinPlayers:        2,
		PlatformFeeBps:    600,
		MaxUsernameLength: 20,
	}
}

// Validate checks that the rules describe a playable game.
func (r Rules) Validate() error {
	if r.RoundCount < 1 {
		return fmt.Errorf("round count must be at least 1, got %d", r.RoundCount)
	}
	if len(r.RoundTypes) != r.RoundCount {
		return fmt.Errorf("expected %d round types, got %d", r.RoundCount, len(r.RoundTypes))
	}
	for i, t := range r.RoundTypes {
		if !t.Valid() {
			return fmt.Errorf("invalid round type %q for round %d", t, i+1)
		}
	}
	if r.RoundDuration <= 0 {
		return fmt.Errorf("round duration must be positive")
	}
	// Deadlines must be strictly increasing
	if r.RoundCount > 1 && r.RoundGap <= 0 {
		return fmt.Errorf("round gap must be positive")
	}
	if r.Lockout < 0 || r.Lockout >= r.RoundDuration {
		return fmt.Errorf("lockout must be within [0, %s), got %s", r.RoundDuration, r.Lockout)
	}
	if r.RegistrationClose < 0 {
		return fmt.Errorf("registration close must not be negative")
	}
	if r.MinPlayers < 1 || r.MinPlayers > r.MaxPlayers {
		return fmt.Errorf("player bounds must satisfy 1 <= min <= max, got min=%d max=%d", r.MinPlayers, r.MaxPlayers)
	}
	if r.PlatformFeeBps > BpsDivisor {
		return fmt.Errorf("platform fee bps must be at most %d, got %d", BpsDivisor, r.PlatformFeeBps)
	}
	if r.MaxUsernameLength < 1 {
		return fmt.Errorf("max username length must be positive")
	}
	return nil
}

// RoundDeadlines derives the nominal end of every round from the scheduled
// start: start + duration + k*gap for k = 0..RoundCount-1.
func (r Rules) RoundDeadlines(start time.Time) []time.Time {
	deadlines := make([]time.Time, r.RoundCount)
	for k := range deadlines {
		deadlines[k] = start.Add(r.RoundDuration + time.Duration(k)*r.RoundGap)
	}
	return deadlines
}
