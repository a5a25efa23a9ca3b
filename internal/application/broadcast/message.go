package broadcast

import (
	"sort"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Message is what subscribers of a preset receive on every tick.
type Message struct {
	PresetID      string            `json:"preset_id"`
	Opportunities []OpportunityView `json:"opportunities"`
	OddsIncreased []string          `json:"odds_increased"`
	OddsDecreased []string          `json:"odds_decreased"`
	At            time.Time         `json:"at"`
}

// OpportunityView is the wire shape of one opportunity.
type OpportunityView struct {
	RowID               string    `json:"row_id"`
	OddsID              string    `json:"odds_id"`
	EventID             string    `json:"event_id"`
	HomeTeam            string    `json:"home_team"`
	AwayTeam            string    `json:"away_team"`
	CommenceTime        time.Time `json:"commence_time"`
	Sport               string    `json:"sport"`
	League              string    `json:"league"`
	Bookmaker           string    `json:"bookmaker"`
	BookmakerTitle      string    `json:"bookmaker_title"`
	Market              string    `json:"market"`
	Selection           string    `json:"selection"`
	NormalizedSelection string    `json:"normalized_selection"`
	Price               float64   `json:"price"`
	Point               *float64  `json:"point,omitempty"`
	TrueOdds            *float64  `json:"true_odds,omitempty"`
	ImpliedProbability  *float64  `json:"implied_probability,omitempty"`
	Edge                *float64  `json:"edge,omitempty"`
	BetLimit            *float64  `json:"bet_limit,omitempty"`
	URL                 string    `json:"url,omitempty"`
	HasBet              bool      `json:"has_bet"`
	HiddenItemID        string    `json:"hidden_item_id,omitempty"`
}

// NewView flattens an opportunity for the wire.
func NewView(o domain.Opportunity) OpportunityView {
	return OpportunityView{
		RowID:               o.RowKey(),
		OddsID:              o.Odds.ID,
		EventID:             o.Event.ID,
		HomeTeam:            o.Event.HomeTeam,
		AwayTeam:            o.Event.AwayTeam,
		CommenceTime:        o.Event.CommenceTime,
		Sport:               o.Sport.Title,
		League:              o.League.Title,
		Bookmaker:           o.Bookmaker.Key,
		BookmakerTitle:      o.Bookmaker.Title,
		Market:              o.Market.Key,
		Selection:           o.Odds.Selection,
		NormalizedSelection: o.Odds.NormalizedSelection,
		Price:               o.Odds.Price,
		Point:               o.Odds.Point,
		TrueOdds:            o.Odds.TrueOdds,
		ImpliedProbability:  o.Odds.ImpliedProbability,
		Edge:                o.Edge,
		BetLimit:            o.Odds.BetLimit,
		URL:                 o.Odds.URL,
		HasBet:              o.HasBet,
		HiddenItemID:        o.HiddenItemID,
	}
}

// Views converts a scan result.
func Views(opps []domain.Opportunity) []OpportunityView {
	out := make([]OpportunityView, len(opps))
	for i, o := range opps {
		out[i] = NewView(o)
	}
	return out
}

// diff compares the prices of this tick with the previous one. Rows that
// are new or gone are neither increased nor decreased.
func diff(prev, cur map[string]float64) (up, down []string) {
	up, down = []string{}, []string{}
	for k, p := range cur {
		old, ok := prev[k]
		if !ok {
			continue
		}
		switch {
		case p > old:
			up = append(up, k)
		case p < old:
			down = append(down, k)
		}
	}
	sort.Strings(up)
	sort.Strings(down)
	return up, down
}
