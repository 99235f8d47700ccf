package engine

import "github.com/holiman/uint256"

// Prize tiers in basis points of the distributable pool.
const (
	PrizeRank1Bps     = 4000
	PrizeRank2Bps     = 2000
	PrizeRank3Bps     = 1200
	PrizeRank4To5Bps  = 600
	PrizeRank6To10Bps = 200
	MaxRewardedRank   = 10
)

// PrizeBps returns the share of the distributable pool awarded to rank.
func PrizeBps(rank uint16) uint64 {
	switch {
	case rank == 1:
		return PrizeRank1Bps
	case rank == 2:
		return PrizeRank2Bps
	case rank == 3:
		return PrizeRank3Bps
	case rank == 4 || rank == 5:
		return PrizeRank4To5Bps
	case rank >= 6 && rank <= MaxRewardedRank:
		return PrizeRank6To10Bps
	}
	return 0
}

// PlatformFee is pool * bps / 10000 computed in 256 bits. A result that
// does not fit in uint64 yields 0.
func PlatformFee(pool uint64, bps uint16) uint64 {
	return mulDivBps(pool, uint64(bps))
}

// Distributable is the pool left after the platform fee, floored at 0.
func Distributable(pool uint64, bps uint16) uint64 {
	fee := PlatformFee(pool, bps)
	if fee > pool {
		return 0
	}
	return pool - fee
}

// PrizeAmount returns the prize owed to rank for a session with the given
// pool and platform fee.
func PrizeAmount(rank uint16, pool uint64, feeBps uint16) uint64 {
	return mulDivBps(Distributable(pool, feeBps), PrizeBps(rank))
}

func mulDivBps(amount, bps uint64) uint64 {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), uint256.NewInt(bps))
	if overflow {
		return 0
	}
	quotient := product.Div(product, uint256.NewInt(BpsDivisor))
	if !quotient.IsUint64() {
		return 0
	}
	return quotient.Uint64()
}
