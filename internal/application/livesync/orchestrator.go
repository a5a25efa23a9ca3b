// Package livesync refreshes stored odds from bookmaker adapters. It decides
// which events are due, asks each bookmaker once per league and merges the
// returned prices back onto the existing odds rows.
package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

const (
	// DefaultConcurrency bounds how many bookmakers sync at once.
	DefaultConcurrency = 4
	// StartedLookback keeps recently started events in the global sync.
	StartedLookback = domain.LiveWindow
)

// Orchestrator runs sync passes. It is safe for concurrent use; the per
// bookmaker state (limiters, breaker, sync history) lives in the sessions.
type Orchestrator struct {
	sessions    ports.SessionProvider
	odds        ports.OddsStore
	bookmakers  ports.BookmakerStore
	resolver    EventResolver
	concurrency int
	now         func() time.Time
}

// EventResolver maps a bookmaker event onto an internal event id.
type EventResolver interface {
	Resolve(ctx context.Context, source, typ, externalID, externalName, group string) (string, bool, error)
}

// New returns an orchestrator. resolver may be nil when SyncLeagueTree is
// not used.
func New(sessions ports.SessionProvider, odds ports.OddsStore, bookmakers ports.BookmakerStore, resolver EventResolver) *Orchestrator {
	return &Orchestrator{
		sessions:    sessions,
		odds:        odds,
		bookmakers:  bookmakers,
		resolver:    resolver,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// WithConcurrency sets how many bookmakers SyncAll runs in parallel.
func (o *Orchestrator) WithConcurrency(n int) *Orchestrator {
	if n > 0 {
		o.concurrency = n
	}
	return o
}

// WithClock replaces the clock.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// eventInfo is what a group knows about one event.
type eventInfo struct {
	ref      domain.EventRef
	commence time.Time
	home     string
	away     string
}

// group is one (bookmaker, league) unit of work: one ObtainOdds call.
type group struct {
	league  string
	events  map[string]eventInfo
	order   []string
	markets []string
}

func (g *group) add(ev eventInfo) {
	if _, ok := g.events[ev.ref.ID]; ok {
		if g.events[ev.ref.ID].ref.EventSID == "" && ev.ref.EventSID != "" {
			g.events[ev.ref.ID] = ev
		}
		return
	}
	g.events[ev.ref.ID] = ev
	g.order = append(g.order, ev.ref.ID)
}

func (g *group) addMarket(key string) {
	for _, m := range g.markets {
		if m == key {
			return
		}
	}
	g.markets = append(g.markets, key)
}

// bookmakerWork is every group of one bookmaker.
type bookmakerWork struct {
	bk     domain.Bookmaker
	groups []*group
}

// SyncOpportunities refreshes the odds behind a set of opportunities, as the
// broadcast loop does for one preset. Returns the number of rows updated.
func (o *Orchestrator) SyncOpportunities(ctx context.Context, opps []domain.Opportunity) (int, error) {
	var (
		work    []*bookmakerWork
		byKey   = make(map[string]*bookmakerWork)
		byGroup = make(map[string]*group)
	)
	for _, op := range opps {
		if op.Bookmaker.ModelType != domain.ModelAPI {
			continue
		}
		w, ok := byKey[op.Bookmaker.Key]
		if !ok {
			w = &bookmakerWork{bk: op.Bookmaker}
			byKey[op.Bookmaker.Key] = w
			work = append(work, w)
		}
		gk := op.Bookmaker.Key + "|" + op.Event.LeagueKey
		g, ok := byGroup[gk]
		if !ok {
			g = &group{league: op.Event.LeagueKey, events: make(map[string]eventInfo)}
			byGroup[gk] = g
			w.groups = append(w.groups, g)
		}
		g.add(eventInfo{
			ref:      domain.EventRef{ID: op.Event.ID, EventSID: op.Odds.EventSID},
			commence: op.Event.CommenceTime,
			home:     op.Event.HomeTeam,
			away:     op.Event.AwayTeam,
		})
		g.addMarket(op.Market.Key)
	}
	return o.run(ctx, work)
}

// SyncAll refreshes every active API bookmaker for every event it quotes
// that started less than StartedLookback ago or has yet to start.
func (o *Orchestrator) SyncAll(ctx context.Context) (int, error) {
	bks, err := o.bookmakers.ActiveBookmakers(ctx, domain.ModelAPI)
	if err != nil {
		return 0, fmt.Errorf("livesync.SyncAll: bookmakers: %w", err)
	}
	since := o.now().Add(-StartedLookback)

	teams := make(map[string]map[string]domain.Event) // league -> event id -> event
	var work []*bookmakerWork
	for _, bk := range bks {
		events, err := o.odds.BookmakerEvents(ctx, bk.Key, since)
		if err != nil {
			slog.Error("livesync: list events failed", "bookmaker", bk.Key, "err", err)
			continue
		}
		w := &bookmakerWork{bk: bk}
		byLeague := make(map[string]*group)
		for _, ev := range events {
			g, ok := byLeague[ev.LeagueKey]
			if !ok {
				g = &group{league: ev.LeagueKey, events: make(map[string]eventInfo)}
				byLeague[ev.LeagueKey] = g
				w.groups = append(w.groups, g)
			}
			info := eventInfo{ref: ev.Ref, commence: ev.CommenceTime}
			if full, ok := o.leagueEvent(ctx, teams, ev.LeagueKey, ev.Ref.ID); ok {
				info.home, info.away = full.HomeTeam, full.AwayTeam
			}
			g.add(info)
		}
		if len(w.groups) > 0 {
			work = append(work, w)
		}
	}
	return o.run(ctx, work)
}

// leagueEvent looks up team names, loading each league once per pass.
func (o *Orchestrator) leagueEvent(ctx context.Context, cache map[string]map[string]domain.Event, league, id string) (domain.Event, bool) {
	events, ok := cache[league]
	if !ok {
		events = make(map[string]domain.Event)
		list, err := o.odds.LeagueEvents(ctx, league)
		if err != nil {
			slog.Warn("livesync: league events failed", "league", league, "err", err)
		}
		for _, e := range list {
			events[e.ID] = e
		}
		cache[league] = events
	}
	e, ok := events[id]
	return e, ok
}

// run syncs bookmakers concurrently and their groups sequentially. Group
// failures are logged and never stop the pass.
func (o *Orchestrator) run(ctx context.Context, work []*bookmakerWork) (int, error) {
	if len(work) == 0 {
		return 0, nil
	}
	start := time.Now()

	var (
		mu      sync.Mutex
		updated int
		failed  int
	)
	eg := new(errgroup.Group)
	eg.SetLimit(o.concurrency)
	for _, w := range work {
		eg.Go(func() error {
			n, errs := o.syncBookmaker(ctx, w)
			mu.Lock()
			updated += n
			failed += errs
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return updated, fmt.Errorf("livesync: %w", err)
	}
	slog.Info("livesync: pass complete",
		"bookmakers", len(work),
		"updated", updated,
		"failed_groups", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return updated, nil
}

func (o *Orchestrator) syncBookmaker(ctx context.Context, w *bookmakerWork) (int, int) {
	sess, err := o.sessions.Session(ctx, w.bk)
	if err != nil {
		slog.Error("livesync: no session", "bookmaker", w.bk.Key, "err", err)
		return 0, len(w.groups)
	}
	if sess.Tier() != ports.TierAPI {
		slog.Debug("livesync: bookmaker cannot refresh odds", "bookmaker", w.bk.Key)
		return 0, 0
	}

	var updated, failed int
	for _, g := range w.groups {
		if ctx.Err() != nil {
			break
		}
		n, err := o.syncGroup(ctx, sess, g)
		if err != nil {
			failed++
			slog.Warn("livesync: group failed", "bookmaker", w.bk.Key, "league", g.league, "err", err)
			continue
		}
		updated += n
	}
	return updated, failed
}

// syncGroup runs one ObtainOdds call and writes the merged rows in one
// transaction. Every event that was asked for is recorded as synced, even
// when the call fails or nothing changed.
func (o *Orchestrator) syncGroup(ctx context.Context, sess ports.BookmakerSession, g *group) (int, error) {
	var (
		refs []domain.EventRef
		ids  []string
	)
	for _, id := range g.order {
		ev := g.events[id]
		if !sess.ShouldSyncEvent(id, ev.commence) {
			continue
		}
		refs = append(refs, ev.ref)
		ids = append(ids, id)
	}
	if len(refs) == 0 {
		return 0, nil
	}
	defer func() {
		for _, id := range ids {
			sess.RecordSync(id)
		}
	}()

	updates, err := sess.ObtainOdds(ctx, g.league, refs, g.markets)
	if err != nil {
		return 0, fmt.Errorf("obtain odds: %w", err)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	rows, err := o.odds.BookmakerOdds(ctx, sess.Key(), ids)
	if err != nil {
		return 0, fmt.Errorf("load rows: %w", err)
	}
	changed := Merge(rows, updates, g.teams())
	if err := o.odds.UpdatePrices(ctx, changed); err != nil {
		return 0, fmt.Errorf("write rows: %w", err)
	}
	slog.Debug("livesync: group synced",
		"bookmaker", sess.Key(), "league", g.league,
		"events", len(ids), "updates", len(updates), "rows", len(changed))
	return len(changed), nil
}

func (g *group) teams() map[string][2]string {
	out := make(map[string][2]string, len(g.events))
	for id, ev := range g.events {
		out[id] = [2]string{ev.home, ev.away}
	}
	return out
}
