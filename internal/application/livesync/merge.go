package livesync

import (
	"strings"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Merge applies adapter updates to the stored rows of one bookmaker and
// returns the rows to write back. An update is matched on
// (event, market, selection) and then on point; when no row carries the raw
// selection it falls back to the normalized selection, using teams
// (event id -> home, away) to normalize team names. Unmatched updates are
// dropped.
func Merge(rows []ports.OddsRow, updates []domain.OddsUpdate, teams map[string][2]string) []domain.Odds {
	type key struct{ event, market, selection string }

	bySelection := make(map[key][]int)
	byNormalized := make(map[key][]int)
	for i, r := range rows {
		sk := key{r.EventID, r.MarketKey, strings.ToLower(r.Odds.Selection)}
		bySelection[sk] = append(bySelection[sk], i)
		nk := key{r.EventID, r.MarketKey, r.Odds.NormalizedSelection}
		byNormalized[nk] = append(byNormalized[nk], i)
	}

	touched := make(map[int]bool)
	var order []int
	out := make([]domain.Odds, len(rows))
	for i, r := range rows {
		out[i] = r.Odds
	}

	for _, u := range updates {
		if u.Price <= 0 {
			continue
		}
		candidates := bySelection[key{u.ExternalEventID, u.MarketKey, strings.ToLower(u.Selection)}]
		if len(candidates) == 0 {
			t := teams[u.ExternalEventID]
			norm := domain.NormalizeSelection(u.Selection, u.MarketKey, t[0], t[1])
			candidates = byNormalized[key{u.ExternalEventID, u.MarketKey, norm}]
		}
		i, ok := pick(out, candidates, u.Point)
		if !ok {
			continue
		}

		o := &out[i]
		o.Price = u.Price
		o.Point = u.Point
		o.BetLimit = u.BetLimit
		if u.SID != "" {
			o.SID = u.SID
		}
		if u.MarketSID != "" {
			o.MarketSID = u.MarketSID
		}
		if u.EventSID != "" {
			o.EventSID = u.EventSID
		}
		if !touched[i] {
			touched[i] = true
			order = append(order, i)
		}
	}

	changed := make([]domain.Odds, 0, len(order))
	for _, i := range order {
		changed = append(changed, out[i])
	}
	return changed
}

// pick returns the candidate whose point equals point. A lone candidate
// takes the update even when its line moved; among several lines an
// unknown point matches none.
func pick(rows []domain.Odds, candidates []int, point *float64) (int, bool) {
	for _, i := range candidates {
		if samePoint(rows[i].Point, point) {
			return i, true
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return 0, false
}

func samePoint(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
