package domain

import (
	"errors"
	"fmt"
	"time"
)

// BetStatus is the lifecycle of a bet.
//
//	pending -> open | placed -> won | lost | void
//	pending -> failed | error
//
// Failed and errored bets never reached the bookmaker and moved no money, so
// they stay where they are. A settled bet can be reopened; the balance
// credited on settlement is then reversed.
type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetOpen    BetStatus = "open"
	BetPlaced  BetStatus = "placed"
	BetFailed  BetStatus = "failed"
	BetError   BetStatus = "error"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
	BetVoid    BetStatus = "void"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid bet status transition")

// IsTerminal reports whether s is a settled result.
func (s BetStatus) IsTerminal() bool {
	return s == BetWon || s == BetLost || s == BetVoid
}

// CountsForDelay reports whether a bet in status s reached the bookmaker, and
// so counts for the per-bookmaker minimum delay between bets.
func (s BetStatus) CountsForDelay() bool {
	switch s {
	case BetPending, BetOpen, BetPlaced, BetWon, BetLost:
		return true
	}
	return false
}

// CanTransition reports whether a bet may move from s to next.
func (s BetStatus) CanTransition(next BetStatus) bool {
	switch s {
	case BetPending:
		return next == BetOpen || next == BetPlaced || next == BetFailed || next == BetError
	case BetOpen, BetPlaced:
		return next.IsTerminal() || (s == BetPlaced && next == BetOpen)
	case BetWon, BetLost, BetVoid:
		return next == BetOpen
	}
	return false
}

// Bet is a wager recorded by the system. The snapshots freeze what the
// executor saw when it decided to bet; they are never rewritten.
type Bet struct {
	ID           string
	PresetID     string
	EventID      string
	BookmakerKey string
	MarketKey    string
	Selection    string // normalized selection
	Price        float64
	Stake        float64
	Status       BetStatus
	ExternalID   string
	Message      string
	Payout       *float64
	PlacedAt     time.Time
	SettledAt    *time.Time

	EventSnapshot  EventSnapshot
	MarketSnapshot MarketSnapshot
	OddsSnapshot   OddsSnapshot
}

// EventSnapshot is the event as seen at decision time.
type EventSnapshot struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	LeagueKey    string    `json:"league_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
}

// MarketSnapshot is the market as seen at decision time.
type MarketSnapshot struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// OddsSnapshot is the priced row the bet was sized on.
type OddsSnapshot struct {
	ID                  string   `json:"id"`
	Selection           string   `json:"selection"`
	NormalizedSelection string   `json:"normalized_selection"`
	Price               float64  `json:"price"`
	Point               *float64 `json:"point,omitempty"`
	TrueOdds            *float64 `json:"true_odds,omitempty"`
	ImpliedProbability  *float64 `json:"implied_probability,omitempty"`
	Edge                *float64 `json:"edge,omitempty"`
	SID                 string   `json:"sid,omitempty"`
	MarketSID           string   `json:"market_sid,omitempty"`
	EventSID            string   `json:"event_sid,omitempty"`
}

// Settlement is the outcome of a bet as reported by a bookmaker.
type Settlement struct {
	Status BetStatus
	Payout float64
}

// DefaultSettlement derives the payout of a settled bet from its stake and
// price: stake·price when won, the stake back when void, −stake when lost.
func DefaultSettlement(b Bet, status BetStatus) (Settlement, error) {
	switch status {
	case BetWon:
		return Settlement{Status: status, Payout: b.Stake * b.Price}, nil
	case BetVoid:
		return Settlement{Status: status, Payout: b.Stake}, nil
	case BetLost:
		return Settlement{Status: status, Payout: -b.Stake}, nil
	}
	return Settlement{}, fmt.Errorf("domain.DefaultSettlement: %q is not a result: %w", status, ErrInvalidTransition)
}

// BalanceCredit is the amount returned to the bookmaker balance when a bet
// settles with s. The stake was debited at placement, so a loss credits
// nothing.
func (s Settlement) BalanceCredit(stake float64) float64 {
	switch s.Status {
	case BetWon:
		return s.Payout
	case BetVoid:
		return stake
	}
	return 0
}

// PlaceResult is what an adapter returns from a placement attempt.
type PlaceResult struct {
	Success bool
	Status  BetStatus
	BetID   string
	Message string
}

// OrderStatus is the bookmaker's view of a placed bet.
type OrderStatus struct {
	ExternalID string
	Status     BetStatus
	Matched    float64
}

// EventResult is a final result reported for one selection of an event.
type EventResult struct {
	EventID             string
	MarketKey           string
	NormalizedSelection string
	Result              BetStatus // won, lost or void
}
