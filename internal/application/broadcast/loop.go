// Package broadcast pushes the opportunities of every subscribed preset to
// its subscribers on a fixed tick, with the prices that moved since the
// previous tick, and keeps those opportunities fresh with background live
// syncs.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// DefaultTick is the interval between two pushes.
const DefaultTick = 5 * time.Second

// ErrStopped is returned by Subscribe once the loop has been stopped.
var ErrStopped = errors.New("broadcast: loop stopped")

// Subscriber receives the messages of one preset. TrySend must not block;
// false means the subscriber's buffer is full and it will be dropped.
type Subscriber interface {
	ID() string
	TrySend(msg Message) bool
	Close()
}

// Scanner is the part of the opportunity scanner the loop needs.
type Scanner interface {
	Scan(ctx context.Context, p domain.Preset, opts scanner.Options) ([]domain.Opportunity, error)
}

// Syncer refreshes the odds behind a set of opportunities.
type Syncer interface {
	SyncOpportunities(ctx context.Context, opps []domain.Opportunity) (int, error)
}

// Publisher fans messages out to other processes.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Loop is the process-wide broadcaster. It starts on the first subscriber
// and stops ticking once no preset has subscribers left.
type Loop struct {
	scanner   Scanner
	presets   ports.PresetStore
	syncer    Syncer
	publisher Publisher
	tick      time.Duration
	now       func() time.Time

	// ctx outlives every request; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	subs    map[string]map[string]Subscriber // preset -> subscriber id
	cache   map[string]map[string]float64    // preset -> row key -> price
	tasks   map[string]chan struct{}         // preset -> outstanding sync
	running bool
	stopped bool
	wg      sync.WaitGroup
}

// New returns an idle loop. syncer may be nil to disable background syncs.
func New(sc Scanner, presets ports.PresetStore, syncer Syncer) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		scanner: sc,
		presets: presets,
		syncer:  syncer,
		tick:    DefaultTick,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]map[string]Subscriber),
		cache:   make(map[string]map[string]float64),
		tasks:   make(map[string]chan struct{}),
	}
}

// WithPublisher also sends every message to p.
func (l *Loop) WithPublisher(p Publisher) *Loop {
	l.publisher = p
	return l
}

// WithTick replaces the tick interval.
func (l *Loop) WithTick(d time.Duration) *Loop {
	if d > 0 {
		l.tick = d
	}
	return l
}

// WithClock replaces the clock.
func (l *Loop) WithClock(now func() time.Time) *Loop {
	l.now = now
	return l
}

// Subscribe registers s for presetID and starts the loop if it is idle.
func (l *Loop) Subscribe(presetID string, s Subscriber) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if l.subs[presetID] == nil {
		l.subs[presetID] = make(map[string]Subscriber)
	}
	l.subs[presetID][s.ID()] = s
	slog.Info("broadcast: subscribed", "preset", presetID, "subscriber", s.ID(), "preset_subscribers", len(l.subs[presetID]))

	if !l.running {
		l.running = true
		l.wg.Add(1)
		go l.run()
	}
	return nil
}

// Unsubscribe removes a subscriber. It does not close it.
func (l *Loop) Unsubscribe(presetID, subscriberID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(presetID, subscriberID)
}

func (l *Loop) removeLocked(presetID, subscriberID string) bool {
	set, ok := l.subs[presetID]
	if !ok {
		return false
	}
	if _, ok := set[subscriberID]; !ok {
		return false
	}
	delete(set, subscriberID)
	if len(set) == 0 {
		delete(l.subs, presetID)
		delete(l.cache, presetID)
	}
	slog.Info("broadcast: unsubscribed", "preset", presetID, "subscriber", subscriberID)
	return true
}

// Subscribers returns the number of subscribers of presetID.
func (l *Loop) Subscribers(presetID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[presetID])
}

// Syncing reports whether a background sync of presetID is outstanding.
func (l *Loop) Syncing(presetID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tasks[presetID]
	return ok
}

// Stop cancels the loop and every in-flight sync, waits for them and
// closes the remaining subscribers.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	var subs []Subscriber
	for _, set := range l.subs {
		for _, s := range set {
			subs = append(subs, s)
		}
	}
	l.subs = make(map[string]map[string]Subscriber)
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	for _, s := range subs {
		s.Close()
	}
	slog.Info("broadcast: stopped", "closed_subscribers", len(subs))
}

func (l *Loop) run() {
	defer l.wg.Done()
	slog.Info("broadcast: starting", "tick", l.tick)

	l.Tick(l.ctx)
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.Tick(l.ctx)
		}

		l.mu.Lock()
		if len(l.subs) == 0 {
			l.running = false
			l.mu.Unlock()
			slog.Info("broadcast: idle, no subscribers")
			return
		}
		l.mu.Unlock()
	}
}

// Tick pushes one message to the subscribers of every subscribed preset.
// Returns the number of presets pushed. A failing preset is logged and
// skipped.
func (l *Loop) Tick(ctx context.Context) int {
	l.mu.Lock()
	ids := make([]string, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	sort.Strings(ids)

	pushed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if l.tickPreset(ctx, id) {
			pushed++
		}
	}
	return pushed
}

func (l *Loop) tickPreset(ctx context.Context, presetID string) bool {
	p, err := l.presets.Preset(ctx, presetID)
	if err != nil {
		slog.Warn("broadcast: preset lookup failed", "preset", presetID, "err", err)
		return false
	}
	opps, err := l.scanner.Scan(ctx, p, scanner.Options{})
	if err != nil {
		slog.Warn("broadcast: scan failed", "preset", presetID, "err", err)
		return false
	}

	cur := make(map[string]float64, len(opps))
	for _, o := range opps {
		cur[o.RowKey()] = o.Odds.Price
	}

	l.mu.Lock()
	prev := l.cache[presetID]
	set := l.subs[presetID]
	if set != nil {
		l.cache[presetID] = cur
	}
	subs := make([]Subscriber, 0, len(set))
	for _, s := range set {
		subs = append(subs, s)
	}
	l.mu.Unlock()

	up, down := diff(prev, cur)
	msg := Message{
		PresetID:      presetID,
		Opportunities: Views(opps),
		OddsIncreased: up,
		OddsDecreased: down,
		At:            l.now().UTC(),
	}

	sent := 0
	for _, s := range subs {
		if s.TrySend(msg) {
			sent++
			continue
		}
		l.drop(presetID, s)
	}
	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, msg); err != nil {
			slog.Warn("broadcast: publish failed", "preset", presetID, "err", err)
		}
	}
	slog.Debug("broadcast: tick",
		"preset", presetID,
		"opportunities", len(opps),
		"increased", len(up),
		"decreased", len(down),
		"sent", sent,
	)

	l.startSync(presetID, opps)
	return true
}

// drop disconnects a subscriber whose buffer is full.
func (l *Loop) drop(presetID string, s Subscriber) {
	l.mu.Lock()
	removed := l.removeLocked(presetID, s.ID())
	l.mu.Unlock()
	if removed {
		slog.Warn("broadcast: slow subscriber dropped", "preset", presetID, "subscriber", s.ID())
		s.Close()
	}
}

// startSync spawns a live sync of the preset's opportunities unless one is
// already outstanding.
func (l *Loop) startSync(presetID string, opps []domain.Opportunity) {
	if l.syncer == nil || len(opps) == 0 {
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	if _, busy := l.tasks[presetID]; busy {
		l.mu.Unlock()
		return
	}
	done := make(chan struct{})
	l.tasks[presetID] = done
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			if l.tasks[presetID] == done {
				delete(l.tasks, presetID)
			}
			l.mu.Unlock()
			close(done)
		}()

		n, err := l.syncer.SyncOpportunities(l.ctx, opps)
		if err != nil {
			slog.Warn("broadcast: live sync failed", "preset", presetID, "err", err)
			return
		}
		if err := l.presets.MarkPresetSynced(l.ctx, presetID, l.now()); err != nil {
			slog.Warn("broadcast: mark synced failed", "preset", presetID, "err", err)
		}
		slog.Debug("broadcast: live sync done", "preset", presetID, "updated", n)
	}()
}
