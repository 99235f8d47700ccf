package engine

import "github.com/distrubuted-game-mechanic/round-engine/internal/types"

// Points scores a choice against the recorded answer of a round.
//
//	PriceDirection, Comparative, Trend: 100 on exact match, else 0
//	Magnitude: 100 exact, 50 for an adjacent bucket, else 0
//	Range: 100 exact, 60 one zone away, 20 two zones away, else 0
func Points(roundType types.RoundType, choice, correct types.Choice) uint32 {
	if choice == correct {
		return PointsExact
	}

	switch roundType {
	case types.RoundMagnitude:
		if bucketDistance(choice, correct) == 1 {
			return PointsPartial
		}
	case types.RoundRange:
		switch bucketDistance(choice, correct) {
		case 1:
			return PointsCloser
		case 2:
			return PointsFar
		}
	}
	return PointsWrong
}

// bucketDistance is the absolute ordinal distance between two bucketed
// choices, or -1 when either has no ordinal.
func bucketDistance(a, b types.Choice) int {
	x, y := a.Bucket(), b.Bucket()
	if x == 0 || y == 0 {
		return -1
	}
	if x > y {
		return x - y
	}
	return y - x
}

// tally classifies awarded points into the round result counters.
type tally int

const (
	tallyWrong tally = iota
	tallyPartial
	tallyCorrect
)

func classify(points uint32) tally {
	switch points {
	case PointsExact:
		return tallyCorrect
	case PointsPartial, PointsCloser:
		return tallyPartial
	}
	return tallyWrong
}
