package scanner

import (
	"slices"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Filter aplica los criterios de un preset sobre las filas del join.
type Filter struct {
	preset domain.Preset
}

// NewFilter crea un Filter para el preset dado.
func NewFilter(p domain.Preset) *Filter {
	return &Filter{preset: p}
}

// allowed aplica las allow-lists; una lista vacía no filtra.
func (f *Filter) allowed(o domain.Opportunity) bool {
	p := f.preset
	return inList(p.Sports, o.Event.SportKey) &&
		inList(p.Bookmakers, o.Bookmaker.Key) &&
		inList(p.Leagues, o.Event.LeagueKey) &&
		inList(p.Markets, o.Market.Key) &&
		inList(p.Selections, o.Odds.NormalizedSelection)
}

// inWindow aplica los límites de horas (exclusivos) de un preset pre-game.
func (f *Filter) inWindow(commence, now time.Time) bool {
	p := f.preset
	if p.IsLive {
		return true
	}
	if p.HoursBeforeMin != nil && !commence.After(now.Add(time.Duration(*p.HoursBeforeMin)*time.Hour)) {
		return false
	}
	if p.HoursBeforeMax != nil && !commence.Before(now.Add(time.Duration(*p.HoursBeforeMax)*time.Hour)) {
		return false
	}
	return true
}

// priced aplica el rango de cuotas, el edge y la probabilidad implícita.
// Devuelve el edge en porcentaje (nil sin precio justo).
func (f *Filter) priced(o domain.Opportunity) (*float64, bool) {
	p := f.preset
	price := o.Odds.Price

	if o.Odds.TrueOdds == nil && !p.IgnoreBenchmarks {
		return nil, false
	}
	if !inRange(price, p.MinOdds, p.MaxOdds) {
		return nil, false
	}

	var edge *float64
	if o.Odds.TrueOdds != nil && *o.Odds.TrueOdds > 0 {
		edge = domain.Float(domain.EdgePercent(price, *o.Odds.TrueOdds))
	}
	if p.HasEdgeFilter() {
		if edge == nil || !inRange(*edge, p.MinEdge, p.MaxEdge) {
			return nil, false
		}
	}

	if p.MinProbability != nil || p.MaxProbability != nil {
		prob := domain.ImpliedProbability(price)
		if o.Odds.ImpliedProbability != nil {
			prob = *o.Odds.ImpliedProbability
		}
		if !inRange(prob*100, p.MinProbability, p.MaxProbability) {
			return nil, false
		}
	}
	return edge, true
}

func inList(list []string, v string) bool {
	return len(list) == 0 || slices.Contains(list, v)
}

func inRange(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}
