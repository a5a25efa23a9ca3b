package domain

// Probability math on decimal odds. Everything here is pure.

// ImpliedProbability returns 1/odds, or 0 for non-positive odds.
func ImpliedProbability(odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return 1 / odds
}

// Edge returns the expected value per unit staked when betting at odds on an
// outcome whose fair probability is fairProb: fairProb·odds − 1.
// Equivalent to odds/trueOdds − 1 with trueOdds = 1/fairProb.
func Edge(odds, fairProb float64) float64 {
	return fairProb*odds - 1
}

// EdgePercent is Edge expressed in percent, computed from the fair price.
// Returns 0 when trueOdds is not positive.
func EdgePercent(price, trueOdds float64) float64 {
	if trueOdds <= 0 {
		return 0
	}
	return (price/trueOdds - 1) * 100
}

// Margin returns the bookmaker overround of a complete set of outcomes:
// Σ(1/odds) − 1. Non-positive odds are ignored.
func Margin(odds []float64) float64 {
	return overround(odds) - 1
}

// RemoveVig normalizes the implied probabilities of odds so they sum to 1
// (multiplicative method). Non-positive odds get probability 0. Returns nil
// when no price is usable.
func RemoveVig(odds []float64) []float64 {
	total := overround(odds)
	if total <= 0 {
		return nil
	}
	fair := make([]float64, len(odds))
	for i, o := range odds {
		fair[i] = ImpliedProbability(o) / total
	}
	return fair
}

func overround(odds []float64) float64 {
	var total float64
	for _, o := range odds {
		total += ImpliedProbability(o)
	}
	return total
}
