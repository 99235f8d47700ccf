package types

// RoundType determines the scoring rule and the legal choice vocabulary of a round.
type RoundType string

const (
	RoundPriceDirection RoundType = "price_direction" // simple up / down
	RoundMagnitude      RoundType = "magnitude"       // how much the price moves
	RoundComparative    RoundType = "comparative"     // which asset moves more
	RoundRange          RoundType = "range"           // which price zone the move lands in
	RoundTrend          RoundType = "trend"           // two-leg pattern
)

// DefaultRoundTypes is the fixed round ordering of a five round game.
var DefaultRoundTypes = []RoundType{
	RoundPriceDirection,
	RoundMagnitude,
	RoundComparative,
	RoundRange,
	RoundTrend,
}

// Valid reports whether t is a known round type.
func (t RoundType) Valid() bool {
	switch t {
	case RoundPriceDirection, RoundMagnitude, RoundComparative, RoundRange, RoundTrend:
		return true
	}
	return false
}

// Choice is a player's answer. The vocabulary depends on the round type.
type Choice string

const (
	// PriceDirection
	ChoiceUp   Choice = "up"
	ChoiceDown Choice = "down"

	// Magnitude buckets
	ChoiceRangeA Choice = "range_a"
	ChoiceRangeB Choice = "range_b"
	ChoiceRangeC Choice = "range_c"
	ChoiceRangeD Choice = "range_d"

	// Comparative
	ChoiceBtcMore Choice = "btc_more"
	ChoiceSolMore Choice = "sol_more"
	ChoiceEqual   Choice = "equal"

	// Range zones
	ChoiceZoneA Choice = "zone_a"
	ChoiceZoneB Choice = "zone_b"
	ChoiceZoneC Choice = "zone_c"
	ChoiceZoneD Choice = "zone_d"

	// Trend patterns
	ChoiceHigherHigher Choice = "higher_higher"
	ChoiceLowerLower   Choice = "lower_lower"
	ChoiceHigherLower  Choice = "higher_lower"
	ChoiceLowerHigher  Choice = "lower_higher"
)

var choiceRoundType = map[Choice]RoundType{
	ChoiceUp:           RoundPriceDirection,
	ChoiceDown:         RoundPriceDirection,
	ChoiceRangeA:       RoundMagnitude,
	ChoiceRangeB:       RoundMagnitude,
	ChoiceRangeC:       RoundMagnitude,
	ChoiceRangeD:       RoundMagnitude,
	ChoiceBtcMore:      RoundComparative,
	ChoiceSolMore:      RoundComparative,
	ChoiceEqual:        RoundComparative,
	ChoiceZoneA:        RoundRange,
	ChoiceZoneB:        RoundRange,
	ChoiceZoneC:        RoundRange,
	ChoiceZoneD:        RoundRange,
	ChoiceHigherHigher: RoundTrend,
	ChoiceLowerLower:   RoundTrend,
	ChoiceHigherLower:  RoundTrend,
	ChoiceLowerHigher:  RoundTrend,
}

// RoundType returns the round type whose vocabulary contains c.
func (c Choice) RoundType() (RoundType, bool) {
	t, ok := choiceRoundType[c]
	return t, ok
}

// BelongsTo reports whether c is a legal answer for a round of type t.
func (c Choice) BelongsTo(t RoundType) bool {
	ct, ok := c.RoundType()
	return ok && ct == t
}

// Bucket returns the 1-based ordinal of a magnitude bucket or range zone
// (A=1 .. D=4), or 0 for choices that have no ordering.
func (c Choice) Bucket() int {
	switch c {
	case ChoiceRangeA, ChoiceZoneA:
		return 1
	case ChoiceRangeB, ChoiceZoneB:
		return 2
	case ChoiceRangeC, ChoiceZoneC:
		return 3
	case ChoiceRangeD, ChoiceZoneD:
		return 4
	}
	return 0
}
