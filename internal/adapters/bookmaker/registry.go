package bookmaker

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Registry owns one Session per bookmaker key. A session is created on first
// use and reconfigured in place when the bookmaker's config changes; it is
// never discarded, so breaker state and sync history outlive config edits.
type Registry struct {
	deps     Deps
	notifier ports.Notifier
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session *Session
	bk      domain.Bookmaker
}

var _ ports.SessionProvider = (*Registry)(nil)

// NewRegistry returns an empty registry. notifier receives circuit-open
// alerts and may be nil.
func NewRegistry(deps Deps, notifier ports.Notifier) *Registry {
	return &Registry{
		deps:     deps,
		notifier: notifier,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// WithClock replaces the clock used by sessions created afterwards.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Session returns the session of bk, creating or reconfiguring it.
func (r *Registry) Session(_ context.Context, bk domain.Bookmaker) (ports.BookmakerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[bk.Key]
	if ok && sameSetup(e.bk, bk) {
		return e.session, nil
	}

	adapter, err := newAdapter(bk, r.deps)
	if err != nil {
		return nil, fmt.Errorf("bookmaker.Registry: %s: %w", bk.Key, err)
	}
	if ok {
		e.session.reconfigure(bk, adapter)
		e.bk = bk
		return e.session, nil
	}

	s := newSession(bk, adapter, r.notifier, r.now)
	r.sessions[bk.Key] = &entry{session: s, bk: bk}
	return s, nil
}

// Keys lists the bookmakers with a live session.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		out = append(out, k)
	}
	return out
}

// sameSetup ignores balance and title; only what the adapter is built from
// matters.
func sameSetup(a, b domain.Bookmaker) bool {
	return a.ModelType == b.ModelType && reflect.DeepEqual(a.Config, b.Config)
}
