package domain

import "time"

// LiveWindow is how long after kick-off an event still counts as live.
const LiveWindow = 2 * time.Hour

// EventRef identifies an event to an adapter: the internal id plus the
// bookmaker-side event id recorded on its odds rows.
type EventRef struct {
	ID       string
	EventSID string
}

// OddsUpdate is one refreshed price returned by an adapter. ExternalEventID
// carries the internal event id the orchestrator asked for.
type OddsUpdate struct {
	ExternalEventID string
	MarketKey       string
	Selection       string
	Price           float64
	Point           *float64
	BetLimit        *float64
	SID             string
	MarketSID       string
	EventSID        string
}

// EventOdds is a full league snapshot: event -> bookmaker -> market -> outcome.
type EventOdds struct {
	ID           string
	SportKey     string
	LeagueKey    string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Bookmakers   []BookmakerOdds
}

// BookmakerOdds is one bookmaker's markets for an event.
type BookmakerOdds struct {
	Key     string
	Title   string
	SID     string
	Markets []MarketOdds
}

// MarketOdds is one market of a bookmaker.
type MarketOdds struct {
	Key      string
	SID      string
	Outcomes []Outcome
}

// Outcome is one priced selection.
type Outcome struct {
	Name     string
	Price    float64
	Point    *float64
	SID      string
	BetLimit *float64
	URL      string
}
