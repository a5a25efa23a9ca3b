package domain

// Opportunity is one priced selection that satisfies a preset. It is built
// by the scanner on every pass and never persisted.
type Opportunity struct {
	Odds      Odds
	Market    Market
	Event     Event
	Bookmaker Bookmaker
	Sport     Sport
	League    League

	HasBet bool
	Edge   *float64 // percent; nil when the row has no fair price

	// HiddenItemID is set by the hidden-opportunity scan to the item that
	// suppresses the row.
	HiddenItemID string
}

// RowKey identifies the row across scans:
// eventId_bookmakerKey_marketKey_normalizedSelection.
func (o Opportunity) RowKey() string {
	return RowKey(o.Event.ID, o.Bookmaker.Key, o.Market.Key, o.Odds.NormalizedSelection)
}

// RowKey builds the key used to diff prices between broadcast ticks.
func RowKey(eventID, bookmakerKey, marketKey, normalizedSelection string) string {
	return eventID + "_" + bookmakerKey + "_" + marketKey + "_" + normalizedSelection
}

// Probability returns the fair probability used for Kelly sizing: 1/true_odds
// when the row has a fair price, else the naive 1/price. nil when neither is
// usable.
func (o Opportunity) Probability() *float64 {
	if o.Odds.TrueOdds != nil && *o.Odds.TrueOdds > 0 {
		return Float(1 / *o.Odds.TrueOdds)
	}
	if o.Odds.Price > 0 {
		return Float(1 / o.Odds.Price)
	}
	return nil
}

// Snapshot freezes the opportunity into the bet snapshots.
func (o Opportunity) Snapshot() (EventSnapshot, MarketSnapshot, OddsSnapshot) {
	ev := EventSnapshot{
		ID:           o.Event.ID,
		SportKey:     o.Event.SportKey,
		LeagueKey:    o.Event.LeagueKey,
		HomeTeam:     o.Event.HomeTeam,
		AwayTeam:     o.Event.AwayTeam,
		CommenceTime: o.Event.CommenceTime,
	}
	mk := MarketSnapshot{ID: o.Market.ID, Key: o.Market.Key}
	od := OddsSnapshot{
		ID:                  o.Odds.ID,
		Selection:           o.Odds.Selection,
		NormalizedSelection: o.Odds.NormalizedSelection,
		Price:               o.Odds.Price,
		Point:               o.Odds.Point,
		TrueOdds:            o.Odds.TrueOdds,
		ImpliedProbability:  o.Odds.ImpliedProbability,
		Edge:                o.Edge,
		SID:                 o.Odds.SID,
		MarketSID:           o.Odds.MarketSID,
		EventSID:            o.Odds.EventSID,
	}
	return ev, mk, od
}
