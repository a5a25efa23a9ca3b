package scanner

import (
	"cmp"
	"slices"
	"strings"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Sort orders opportunities by the preset's sort_by/sort_order. Rows missing
// the sort value always go last, whatever the direction.
func Sort(opps []domain.Opportunity, cfg domain.OtherConfig) {
	by, desc := cfg.Sort()
	key := sortKey(by)

	slices.SortStableFunc(opps, func(a, b domain.Opportunity) int {
		va, oka := key(a)
		vb, okb := key(b)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		c := va.compare(vb)
		if desc {
			return -c
		}
		return c
	})
}

// sortValue holds either a number or a string.
type sortValue struct {
	num float64
	str string
}

func (v sortValue) compare(o sortValue) int {
	if c := cmp.Compare(v.num, o.num); c != 0 {
		return c
	}
	return strings.Compare(v.str, o.str)
}

func sortKey(by string) func(domain.Opportunity) (sortValue, bool) {
	switch by {
	case "start_time":
		return func(o domain.Opportunity) (sortValue, bool) {
			if o.Event.CommenceTime.IsZero() {
				return sortValue{}, false
			}
			return sortValue{num: float64(o.Event.CommenceTime.Unix())}, true
		}
	case "price":
		return func(o domain.Opportunity) (sortValue, bool) {
			return sortValue{num: o.Odds.Price}, o.Odds.Price > 0
		}
	case "implied_probability":
		return func(o domain.Opportunity) (sortValue, bool) {
			if o.Odds.ImpliedProbability != nil {
				return sortValue{num: *o.Odds.ImpliedProbability}, true
			}
			if o.Odds.Price > 0 {
				return sortValue{num: 1 / o.Odds.Price}, true
			}
			return sortValue{}, false
		}
	case "home":
		return func(o domain.Opportunity) (sortValue, bool) {
			name := strings.ToLower(o.Event.HomeTeam)
			return sortValue{str: name}, name != ""
		}
	}
	return func(o domain.Opportunity) (sortValue, bool) {
		if o.Edge == nil {
			return sortValue{}, false
		}
		return sortValue{num: *o.Edge}, true
	}
}
