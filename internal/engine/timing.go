package engine

import "time"

// Phase is the position of a point in time relative to one round's window.
type Phase int

const (
	// PhaseOpen accepts submissions.
	PhaseOpen Phase = iota
	// PhaseLocked is the final lockout of the round, end inclusive.
	PhaseLocked
	// PhaseClosed starts strictly after round end; outcomes and evaluation are allowed.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseLocked:
		return "locked"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// PhaseAt computes the window phase of a round ending at end.
// This is a pure function: the caller supplies the current time.
//
// Formula:
//   - now <  end - lockout        -> open
//   - end - lockout <= now <= end -> locked
//   - now >  end                  -> closed
func PhaseAt(end time.Time, lockout time.Duration, now time.Time) Phase {
	switch {
	case now.After(end):
		return PhaseClosed
	case now.Before(end.Add(-lockout)):
		return PhaseOpen
	default:
		return PhaseLocked
	}
}

// NextRoundDue reports whether the round after one that opened at start is
// due. Rounds open every gap, matching the deadline derivation
// start + duration + k*gap.
func NextRoundDue(start time.Time, gap time.Duration, now time.Time) bool {
	return !now.Before(start.Add(gap))
}
