package domain

import (
	"strings"
	"time"
)

// Sport groups leagues ("Soccer", "Basketball").
type Sport struct {
	Key   string
	Title string
	Group string
}

// League belongs to one sport. Its key is the internal identifier that
// bookmaker-specific league ids are mapped onto.
type League struct {
	Key      string
	SportKey string
	Title    string
	Group    string
}

// Event is a single fixture.
type Event struct {
	ID           string
	SportKey     string
	LeagueKey    string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Active       bool
}

// Name returns "Home vs Away", the label used for fuzzy event matching.
func (e Event) Name() string {
	return e.HomeTeam + " vs " + e.AwayTeam
}

// Market belongs to one event and holds the odds of every bookmaker for it.
type Market struct {
	ID      string
	EventID string
	Key     string // h2h, spreads, totals, ...
}

// Odds is one quoted price of a bookmaker for a selection of a market.
// ImpliedProbability, TrueOdds and Margin are derived by the fair-odds
// estimator and overwritten in place on every recompute.
type Odds struct {
	ID                  string
	MarketID            string
	BookmakerKey        string
	Selection           string
	NormalizedSelection string
	Price               float64
	Point               *float64
	ImpliedProbability  *float64
	TrueOdds            *float64
	Margin              *float64
	Result              string

	// Bookmaker-side identifiers needed to place or refresh this price.
	SID       string
	MarketSID string
	EventSID  string
	URL       string
	BetLimit  *float64

	UpdatedAt time.Time
}

// NormalizeSelection maps a raw outcome name to the canonical selection used
// to line up the same outcome across bookmakers: home/away/draw for match
// markets, over/under for totals. Unknown names are returned lowercased.
func NormalizeSelection(name, marketKey, homeTeam, awayTeam string) string {
	val := strings.ToLower(strings.TrimSpace(name))

	if marketKey == "h2h" || marketKey == "spreads" {
		if homeTeam != "" && val == strings.ToLower(strings.TrimSpace(homeTeam)) {
			return "home"
		}
		if awayTeam != "" && val == strings.ToLower(strings.TrimSpace(awayTeam)) {
			return "away"
		}
	}

	switch val {
	case "home", "1", "team 1", "team1":
		return "home"
	case "away", "2", "team 2", "team2":
		return "away"
	case "draw", "x", "the draw", "tie":
		return "draw"
	}

	switch {
	case strings.HasPrefix(val, "over"):
		return "over"
	case strings.HasPrefix(val, "under"):
		return "under"
	}
	return val
}

// Float returns a pointer to v. Handy for the optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
