package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

const (
	// MaxResults caps the rows a scan returns.
	MaxResults = 100
	// LiveMatchLength is how far back a live preset looks for started events.
	LiveMatchLength = domain.LiveWindow
	// HiddenLookback bounds the hidden-opportunity query.
	HiddenLookback = 6 * time.Hour
)

// Options tweak a single scan.
type Options struct {
	// BookmakerKeys restricts the scan on top of the preset's own list.
	BookmakerKeys []string
}

// Scanner joins normalized odds with a preset's criteria and its hidden
// items. It holds no state between scans.
type Scanner struct {
	odds    ports.OddsStore
	presets ports.PresetStore
	bets    ports.BetStore
	now     func() time.Time
}

// New returns a scanner over the given stores.
func New(odds ports.OddsStore, presets ports.PresetStore, bets ports.BetStore) *Scanner {
	return &Scanner{odds: odds, presets: presets, bets: bets, now: time.Now}
}

// WithClock replaces the scanner clock.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Scan returns the opportunities of p, sorted by the preset's sort config
// and capped at MaxResults.
func (s *Scanner) Scan(ctx context.Context, p domain.Preset, opts Options) ([]domain.Opportunity, error) {
	now := s.now().UTC()

	q := ports.ScanQuery{BookmakerKeys: opts.BookmakerKeys}
	if p.IsLive {
		q.CommenceFrom = now.Add(-LiveMatchLength)
		q.CommenceTo = now
	} else {
		q.CommenceFrom = now
	}

	rows, err := s.odds.ScanRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("scanner.Scan: %w", err)
	}
	hidden, err := s.hiddenSet(ctx, p.ID, now)
	if err != nil {
		return nil, fmt.Errorf("scanner.Scan: %w", err)
	}

	f := NewFilter(p)
	out := make([]domain.Opportunity, 0, len(rows))
	for _, o := range rows {
		if !f.allowed(o) || !f.inWindow(o.Event.CommenceTime, now) {
			continue
		}
		if _, ok := hidden.Match(o.Event.ID, o.Market.Key, o.Odds.NormalizedSelection); ok {
			continue
		}
		edge, ok := f.priced(o)
		if !ok {
			continue
		}
		o.Edge = edge
		out = append(out, o)
	}

	if err := s.markBets(ctx, out); err != nil {
		return nil, fmt.Errorf("scanner.Scan: %w", err)
	}

	Sort(out, p.OtherConfig)
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	slog.Debug("scanner: scan complete", "preset", p.ID, "rows", len(rows), "opportunities", len(out))
	return out, nil
}

// ScanHidden returns the rows of p that are currently suppressed, each with
// the id of the hidden item that matched it. No price filtering applies.
func (s *Scanner) ScanHidden(ctx context.Context, p domain.Preset) ([]domain.Opportunity, error) {
	now := s.now().UTC()

	hidden, err := s.hiddenSet(ctx, p.ID, now)
	if err != nil {
		return nil, fmt.Errorf("scanner.ScanHidden: %w", err)
	}
	if len(hidden) == 0 {
		return nil, nil
	}

	rows, err := s.odds.ScanRows(ctx, ports.ScanQuery{CommenceFrom: now.Add(-HiddenLookback)})
	if err != nil {
		return nil, fmt.Errorf("scanner.ScanHidden: %w", err)
	}

	f := NewFilter(p)
	var out []domain.Opportunity
	for _, o := range rows {
		if !f.allowed(o) {
			continue
		}
		item, ok := hidden.Match(o.Event.ID, o.Market.Key, o.Odds.NormalizedSelection)
		if !ok {
			continue
		}
		o.HiddenItemID = item.ID
		if o.Odds.TrueOdds != nil && *o.Odds.TrueOdds > 0 {
			o.Edge = domain.Float(domain.EdgePercent(o.Odds.Price, *o.Odds.TrueOdds))
		}
		out = append(out, o)
	}

	if err := s.markBets(ctx, out); err != nil {
		return nil, fmt.Errorf("scanner.ScanHidden: %w", err)
	}
	Sort(out, p.OtherConfig)
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out, nil
}

func (s *Scanner) hiddenSet(ctx context.Context, presetID string, now time.Time) (domain.HiddenSet, error) {
	if presetID == "" {
		return domain.HiddenSet{}, nil
	}
	items, err := s.presets.HiddenItems(ctx, presetID)
	if err != nil {
		return nil, fmt.Errorf("hidden items: %w", err)
	}
	return domain.NewHiddenSet(items, now), nil
}

// markBets sets HasBet on rows that already carry a bet.
func (s *Scanner) markBets(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var eventIDs []string
	for _, o := range opps {
		if !seen[o.Event.ID] {
			seen[o.Event.ID] = true
			eventIDs = append(eventIDs, o.Event.ID)
		}
	}
	keys, err := s.bets.BetRowKeys(ctx, eventIDs)
	if err != nil {
		return fmt.Errorf("bet keys: %w", err)
	}
	for i := range opps {
		opps[i].HasBet = keys[opps[i].RowKey()]
	}
	return nil
}
