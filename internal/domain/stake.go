package domain

import (
	"log/slog"
	"math"
)

// StakeStrategy selects how a bet is sized.
type StakeStrategy string

const (
	StakeFixed StakeStrategy = "fixed"
	StakeRisk  StakeStrategy = "risk"
	StakeKelly StakeStrategy = "kelly"
)

const (
	DefaultStake           = 10.0
	DefaultPercentRisk     = 10.0
	DefaultKellyMultiplier = 1.0
)

// StakeParams are the inputs of CalculateStake. Probability and Odds are only
// needed by the kelly strategy.
type StakeParams struct {
	Strategy        StakeStrategy
	Bankroll        float64
	Probability     *float64
	Odds            *float64
	PercentRisk     float64
	KellyMultiplier float64
	MaxStake        *float64
	DefaultStake    float64
}

// CalculateStake sizes a bet. The result is clamped to [0, MaxStake] and
// rounded to cents whatever the strategy.
func CalculateStake(p StakeParams) float64 {
	fixed := p.DefaultStake
	if fixed <= 0 {
		fixed = DefaultStake
	}

	var stake float64
	switch p.Strategy {
	case StakeFixed:
		stake = fixed

	case StakeRisk:
		pct := p.PercentRisk
		if pct <= 0 {
			pct = DefaultPercentRisk
		}
		stake = p.Bankroll * pct / 100

	case StakeKelly:
		if p.Probability == nil || p.Odds == nil {
			slog.Warn("stake: kelly needs probability and odds, using fixed stake")
			stake = fixed
			break
		}
		mult := p.KellyMultiplier
		if mult <= 0 {
			mult = DefaultKellyMultiplier
		}
		stake = p.Bankroll * KellyFraction(*p.Probability, *p.Odds, mult)

	default:
		slog.Warn("stake: unknown strategy, using fixed stake", "strategy", p.Strategy)
		stake = fixed
	}

	if p.MaxStake != nil && stake > *p.MaxStake {
		stake = *p.MaxStake
	}
	if stake < 0 {
		stake = 0
	}
	return math.Round(stake*100) / 100
}

// KellyFraction returns the multiplied Kelly fraction f = (b·p − q)/b with
// b = odds − 1, clipped to [0, 1]. No edge (or odds ≤ 1) yields 0.
func KellyFraction(probability, odds, multiplier float64) float64 {
	b := odds - 1
	if b <= 0 {
		return 0
	}
	q := 1 - probability
	f := (b*probability - q) / b * multiplier
	if f <= 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
