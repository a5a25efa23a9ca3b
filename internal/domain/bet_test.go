package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetStatus_Transitions(t *testing.T) {
	allowed := map[BetStatus][]BetStatus{
		BetPending: {BetOpen, BetPlaced, BetFailed, BetError},
		BetOpen:    {BetWon, BetLost, BetVoid},
		BetPlaced:  {BetWon, BetLost, BetVoid, BetOpen},
		BetWon:     {BetOpen},
		BetLost:    {BetOpen},
		BetVoid:    {BetOpen},
	}
	all := []BetStatus{BetPending, BetOpen, BetPlaced, BetFailed, BetError, BetWon, BetLost, BetVoid}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestBetStatus_CountsForDelay(t *testing.T) {
	for _, s := range []BetStatus{BetPlaced, BetOpen, BetWon, BetLost, BetPending} {
		assert.True(t, s.CountsForDelay(), s)
	}
	for _, s := range []BetStatus{BetFailed, BetError, BetVoid} {
		assert.False(t, s.CountsForDelay(), s)
	}
}

func TestDefaultSettlement(t *testing.T) {
	bet := Bet{Stake: 10, Price: 2.5}

	won, err := DefaultSettlement(bet, BetWon)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, won.Payout, 1e-9)
	assert.InDelta(t, 25.0, won.BalanceCredit(bet.Stake), 1e-9)

	void, err := DefaultSettlement(bet, BetVoid)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, void.Payout, 1e-9)
	assert.InDelta(t, 10.0, void.BalanceCredit(bet.Stake), 1e-9)

	lost, err := DefaultSettlement(bet, BetLost)
	require.NoError(t, err)
	assert.InDelta(t, -10.0, lost.Payout, 1e-9)
	assert.Equal(t, 0.0, lost.BalanceCredit(bet.Stake))

	_, err = DefaultSettlement(bet, BetOpen)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
