package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedProbability(t *testing.T) {
	assert.InDelta(t, 0.5, ImpliedProbability(2.0), 1e-12)
	assert.InDelta(t, 0.4, ImpliedProbability(2.5), 1e-12)
	assert.Equal(t, 0.0, ImpliedProbability(0))
	assert.Equal(t, 0.0, ImpliedProbability(-1.5))
}

func TestEdge_MatchesTrueOddsForm(t *testing.T) {
	for _, fair := range []float64{0.05, 0.25, 0.5, 0.73, 1.0} {
		for _, odds := range []float64{1.01, 1.5, 2.2, 7.0} {
			trueOdds := 1 / fair
			assert.InDelta(t, odds/trueOdds-1, Edge(odds, fair), 1e-12, "odds=%v fair=%v", odds, fair)
		}
	}
}

func TestEdge_Scenario(t *testing.T) {
	assert.InDelta(t, 0.10, Edge(2.20, 0.5), 1e-12)
	assert.InDelta(t, 10.0, EdgePercent(2.20, 2.0), 1e-9)
}

func TestEdgePercent_NoFairPrice(t *testing.T) {
	assert.Equal(t, 0.0, EdgePercent(2.2, 0))
}

func TestRemoveVig_EvenMarket(t *testing.T) {
	fair := RemoveVig([]float64{2.0, 2.0})
	require.Len(t, fair, 2)
	assert.Equal(t, 0.5, fair[0])
	assert.Equal(t, 0.5, fair[1])
}

func TestRemoveVig_SumsToOne(t *testing.T) {
	fair := RemoveVig([]float64{1.91, 1.91})
	require.Len(t, fair, 2)
	assert.InDelta(t, 1.0, fair[0]+fair[1], 1e-12)
	assert.InDelta(t, 0.0471, Margin([]float64{1.91, 1.91}), 0.0001)

	three := RemoveVig([]float64{2.5, 3.4, 2.9})
	var sum float64
	for _, p := range three {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestRemoveVig_NoUsablePrice(t *testing.T) {
	assert.Nil(t, RemoveVig(nil))
	assert.Nil(t, RemoveVig([]float64{0, -2}))
}

func TestMargin_FairBook(t *testing.T) {
	assert.InDelta(t, 0.0, Margin([]float64{2.0, 2.0}), 1e-12)
}
