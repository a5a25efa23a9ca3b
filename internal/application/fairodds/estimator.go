// Package fairodds keeps the derived columns of every odds row current:
// implied probability, true odds and bookmaker margin, all taken from the
// benchmark bookmaker's de-vigged prices.
package fairodds

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// DefaultInterval is how often Run recomputes.
const DefaultInterval = time.Minute

// Estimator recomputes fair odds for every market of upcoming and live
// events.
type Estimator struct {
	odds      ports.OddsStore
	benchmark string
	workers   int
	now       func() time.Time
}

// New returns an estimator that de-vigs with the benchmark bookmaker.
func New(odds ports.OddsStore, benchmark string) *Estimator {
	return &Estimator{odds: odds, benchmark: benchmark, now: time.Now}
}

// WithWorkers sets the size of the worker pool (0 = NumCPU*2).
func (e *Estimator) WithWorkers(n int) *Estimator {
	e.workers = n
	return e
}

// Run recomputes once, then on every tick until ctx is cancelled.
func (e *Estimator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	slog.Info("fairodds: starting", "benchmark", e.benchmark, "interval", interval)

	if _, err := e.RecomputeAll(ctx); err != nil {
		slog.Error("fairodds: recompute failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("fairodds: stopped")
			return nil
		case <-ticker.C:
			if _, err := e.RecomputeAll(ctx); err != nil {
				slog.Error("fairodds: recompute failed", "err", err)
			}
		}
	}
}

// RecomputeAll rewrites the derived columns of every odds row of events that
// have not started or started less than domain.LiveWindow ago. Returns the
// number of rows written.
func (e *Estimator) RecomputeAll(ctx context.Context) (int, error) {
	start := time.Now()
	rows, err := e.odds.MarketOdds(ctx, e.now().Add(-domain.LiveWindow))
	if err != nil {
		return 0, fmt.Errorf("fairodds.RecomputeAll: %w", err)
	}

	byMarket := make(map[string][]domain.Odds)
	var order []string
	for _, o := range rows {
		if _, ok := byMarket[o.MarketID]; !ok {
			order = append(order, o.MarketID)
		}
		byMarket[o.MarketID] = append(byMarket[o.MarketID], o)
	}
	markets := make([][]domain.Odds, 0, len(order))
	for _, id := range order {
		markets = append(markets, byMarket[id])
	}

	derived := estimateConcurrent(ctx, markets, e.benchmark, e.workers)
	if err := e.odds.UpdateDerived(ctx, derived); err != nil {
		return 0, fmt.Errorf("fairodds.RecomputeAll: %w", err)
	}

	slog.Info("fairodds: recompute complete",
		"markets", len(markets),
		"rows", len(derived),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return len(derived), nil
}

// Estimate derives the fair columns of one market's rows. When the benchmark
// quotes the market its de-vigged probabilities are shared with every other
// bookmaker by normalized selection; selections it does not quote, and
// markets it does not quote at all, fall back on the naive 1/price with no
// true odds. Points are ignored when grouping.
func Estimate(rows []domain.Odds, benchmark string) []domain.Odds {
	byBookmaker := make(map[string][]int)
	for i, o := range rows {
		byBookmaker[o.BookmakerKey] = append(byBookmaker[o.BookmakerKey], i)
	}

	out := make([]domain.Odds, len(rows))
	copy(out, rows)

	fair := make(map[string]float64)
	if idx, ok := byBookmaker[benchmark]; ok && benchmark != "" {
		prices := pricesOf(out, idx)
		if probs := domain.RemoveVig(prices); probs != nil {
			margin := domain.Margin(prices)
			for k, i := range idx {
				o := &out[i]
				o.Margin = domain.Float(margin)
				if probs[k] <= 0 {
					o.ImpliedProbability, o.TrueOdds = nil, nil
					continue
				}
				o.ImpliedProbability = domain.Float(probs[k])
				o.TrueOdds = domain.Float(1 / probs[k])
				if _, seen := fair[o.NormalizedSelection]; !seen {
					fair[o.NormalizedSelection] = probs[k]
				}
			}
		}
	}

	for key, idx := range byBookmaker {
		if key == benchmark && len(fair) > 0 {
			continue
		}
		margin := domain.Margin(pricesOf(out, idx))
		for _, i := range idx {
			o := &out[i]
			o.Margin = domain.Float(margin)
			if p, ok := fair[o.NormalizedSelection]; ok {
				o.ImpliedProbability = domain.Float(p)
				o.TrueOdds = domain.Float(1 / p)
				continue
			}
			o.TrueOdds = nil
			o.ImpliedProbability = nil
			if o.Price > 0 {
				o.ImpliedProbability = domain.Float(domain.ImpliedProbability(o.Price))
			}
		}
	}
	return out
}

func pricesOf(rows []domain.Odds, idx []int) []float64 {
	prices := make([]float64, len(idx))
	for k, i := range idx {
		prices[k] = rows[i].Price
	}
	return prices
}
