package coordinator

import (
	"context"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Errors
var (
	ErrMissingPrice = errors.New("price missing for outcome resolution")
	ErrZeroPrice    = errors.New("start price is zero")
	ErrNoPrevious   = errors.New("trend round has no previous round")
)

// OutcomeResolver is the external authority that decides a round's correct answer.
type OutcomeResolver interface {
	Resolve(ctx context.Context, s *types.GameSession, round, previous *types.RoundResult, end types.Prices) (types.Choice, error)
}

// PriceOutcomeResolver derives answers from the recorded start and end prices.
// All bands are percentages of the start price.
type PriceOutcomeResolver struct {
	// Magnitude bucket upper bounds on the absolute move: A below the first, D at or above the last.
	MagnitudeBands [3]decimal.Decimal
	// Range zone boundary on the signed move: A <= -RangeBand < B <= 0 < C < RangeBand <= D.
	RangeBand decimal.Decimal
	// Moves closer than EqualBand count as equal in comparative rounds.
	EqualBand decimal.Decimal
}

// NewPriceOutcomeResolver returns a resolver with the default bands.
func NewPriceOutcomeResolver() *PriceOutcomeResolver {
	return &PriceOutcomeResolver{
		MagnitudeBands: [3]decimal.Decimal{
			decimal.RequireFromString("0.1"),
			decimal.RequireFromString("0.5"),
			decimal.RequireFromString("1"),
		},
		RangeBand: decimal.RequireFromString("0.5"),
		EqualBand: decimal.RequireFromString("0.05"),
	}
}

// Resolve returns the correct choice for round given its closing prices.
func (r *PriceOutcomeResolver) Resolve(ctx context.Context, s *types.GameSession, round, previous *types.RoundResult, end types.Prices) (types.Choice, error) {
	switch round.RoundType {
	case types.RoundPriceDirection:
		start, stop, err := primary(s, round.StartPriceBTC, round.StartPriceSOL, end.BTC, end.SOL)
		if err != nil {
			return "", err
		}
		if stop > start {
			return types.ChoiceUp, nil
		}
		return types.ChoiceDown, nil

	case types.RoundMagnitude:
		start, stop, err := primary(s, round.StartPriceBTC, round.StartPriceSOL, end.BTC, end.SOL)
		if err != nil {
			return "", err
		}
		pct, err := percentMove(start, stop)
		if err != nil {
			return "", err
		}
		pct = pct.Abs()
		switch {
		case pct.LessThan(r.MagnitudeBands[0]):
			return types.ChoiceRangeA, nil
		case pct.LessThan(r.MagnitudeBands[1]):
			return types.ChoiceRangeB, nil
		case pct.LessThan(r.MagnitudeBands[2]):
			return types.ChoiceRangeC, nil
		}
		return types.ChoiceRangeD, nil

	case types.RoundComparative:
		if round.StartPriceBTC == nil || round.StartPriceSOL == nil || end.BTC == nil || end.SOL == nil {
			return "", ErrMissingPrice
		}
		btc, err := percentMove(*round.StartPriceBTC, *end.BTC)
		if err != nil {
			return "", err
		}
		sol, err := percentMove(*round.StartPriceSOL, *end.SOL)
		if err != nil {
			return "", err
		}
		diff := btc.Sub(sol)
		switch {
		case diff.Abs().LessThan(r.EqualBand):
			return types.ChoiceEqual, nil
		case diff.IsPositive():
			return types.ChoiceBtcMore, nil
		}
		return types.ChoiceSolMore, nil

	case types.RoundRange:
		start, stop, err := primary(s, round.StartPriceBTC, round.StartPriceSOL, end.BTC, end.SOL)
		if err != nil {
			return "", err
		}
		pct, err := percentMove(start, stop)
		if err != nil {
			return "", err
		}
		switch {
		case pct.LessThanOrEqual(r.RangeBand.Neg()):
			return types.ChoiceZoneA, nil
		case !pct.IsPositive():
			return types.ChoiceZoneB, nil
		case pct.LessThan(r.RangeBand):
			return types.ChoiceZoneC, nil
		}
		return types.ChoiceZoneD, nil

	case types.RoundTrend:
		if previous == nil {
			return "", ErrNoPrevious
		}
		prevStart, prevEnd, err := primary(s, previous.StartPriceBTC, previous.StartPriceSOL, previous.EndPriceBTC, previous.EndPriceSOL)
		if err != nil {
			return "", err
		}
		start, stop, err := primary(s, round.StartPriceBTC, round.StartPriceSOL, end.BTC, end.SOL)
		if err != nil {
			return "", err
		}
		wasHigher, isHigher := prevEnd > prevStart, stop > start
		switch {
		case wasHigher && isHigher:
			return types.ChoiceHigherHigher, nil
		case !wasHigher && !isHigher:
			return types.ChoiceLowerLower, nil
		case wasHigher:
			return types.ChoiceHigherLower, nil
		}
		return types.ChoiceLowerHigher, nil
	}
	return "", errors.New("unknown round type " + string(round.RoundType))
}

// primary picks the start and end price of the asset a single-asset round is
// judged on. BTC leads in BTC vs SOL games.
func primary(s *types.GameSession, startBTC, startSOL, endBTC, endSOL *uint64) (uint64, uint64, error) {
	start, end := startBTC, endBTC
	if s.GameType == types.GameSolOnly {
		start, end = startSOL, endSOL
	}
	if start == nil || end == nil {
		return 0, 0, ErrMissingPrice
	}
	return *start, *end, nil
}

// percentMove is (end - start) / start * 100.
func percentMove(start, end uint64) (decimal.Decimal, error) {
	if start == 0 {
		return decimal.Zero, ErrZeroPrice
	}
	s, e := micro(start), micro(end)
	return e.Sub(s).Div(s).Shift(2), nil
}

func micro(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
