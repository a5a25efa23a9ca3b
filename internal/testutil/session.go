package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// FakeSession is a scripted bookmaker session that records every call.
type FakeSession struct {
	BookmakerKey  string
	Simple        bool // reports TierNone
	NoCredentials bool
	NotDue        bool // ShouldSyncEvent returns false

	Updates []domain.OddsUpdate
	Tree    []domain.EventOdds
	OddsErr error

	PlaceResult domain.PlaceResult
	PlaceErr    error

	Settlements map[string]domain.Settlement // by bet id
	SettleErr   error

	// nil means the bookmaker cannot report them.
	OrderStatuses map[string]domain.OrderStatus // by external id
	Results       []domain.EventResult

	mu      sync.Mutex
	asked   [][]domain.EventRef
	markets [][]string
	synced  []string
	placed  []domain.Bet
}

var _ ports.BookmakerSession = (*FakeSession)(nil)

// NewFakeSession returns an API-tier session with credentials whose
// placements succeed.
func NewFakeSession(key string) *FakeSession {
	return &FakeSession{
		BookmakerKey: key,
		PlaceResult:  domain.PlaceResult{Success: true, Status: domain.BetPlaced, BetID: "ext-1"},
	}
}

func (f *FakeSession) Key() string { return f.BookmakerKey }

func (f *FakeSession) Tier() ports.Tier {
	if f.Simple {
		return ports.TierNone
	}
	return ports.TierAPI
}

func (f *FakeSession) HasCredentials() bool { return !f.NoCredentials }

func (f *FakeSession) Authorize(context.Context) error { return nil }

func (f *FakeSession) ObtainOdds(_ context.Context, _ string, events []domain.EventRef, markets []string) ([]domain.OddsUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, events)
	f.markets = append(f.markets, markets)
	return f.Updates, f.OddsErr
}

func (f *FakeSession) FetchLeagueOdds(context.Context, string, []string) ([]domain.EventOdds, error) {
	return f.Tree, f.OddsErr
}

func (f *FakeSession) PlaceBet(_ context.Context, b domain.Bet) (domain.PlaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, b)
	return f.PlaceResult, f.PlaceErr
}

func (f *FakeSession) AccountBalance(context.Context) (domain.Balance, error) {
	return domain.Balance{}, ports.ErrNotSupported
}

func (f *FakeSession) OrderStatus(_ context.Context, externalID string) (domain.OrderStatus, error) {
	if f.OrderStatuses == nil {
		return domain.OrderStatus{}, ports.ErrNotSupported
	}
	st, ok := f.OrderStatuses[externalID]
	if !ok {
		return domain.OrderStatus{}, errors.New("unknown order")
	}
	return st, nil
}

func (f *FakeSession) BetSettlement(_ context.Context, b domain.Bet) (domain.Settlement, error) {
	if f.SettleErr != nil {
		return domain.Settlement{}, f.SettleErr
	}
	s, ok := f.Settlements[b.ID]
	if !ok {
		return domain.Settlement{}, errors.New("not settled yet")
	}
	return s, nil
}

func (f *FakeSession) EventResults(context.Context, []string) ([]domain.EventResult, error) {
	if f.Results == nil {
		return nil, ports.ErrNotSupported
	}
	return f.Results, nil
}

func (f *FakeSession) ShouldSyncEvent(string, time.Time) bool { return !f.NotDue }

func (f *FakeSession) RecordSync(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, id)
}

// Asked returns the event refs of every ObtainOdds call.
func (f *FakeSession) Asked() [][]domain.EventRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.EventRef(nil), f.asked...)
}

// Markets returns the allowed markets of every ObtainOdds call.
func (f *FakeSession) Markets() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.markets...)
}

// Synced returns the event ids passed to RecordSync.
func (f *FakeSession) Synced() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.synced...)
}

// Placed returns the bets passed to PlaceBet.
func (f *FakeSession) Placed() []domain.Bet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Bet(nil), f.placed...)
}

// Sessions is a SessionProvider over fixed fake sessions.
type Sessions map[string]*FakeSession

func (s Sessions) Session(_ context.Context, bk domain.Bookmaker) (ports.BookmakerSession, error) {
	f, ok := s[bk.Key]
	if !ok {
		return nil, errors.New("no session for " + bk.Key)
	}
	return f, nil
}

// Notifier records notification kinds.
type Notifier struct {
	mu    sync.Mutex
	kinds []string
	last  map[string]any
}

func (n *Notifier) Send(_ context.Context, kind string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.last = payload
}

// Kinds returns the kinds sent so far, in order.
func (n *Notifier) Kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.kinds...)
}

// Last returns the payload of the latest notification.
func (n *Notifier) Last() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
