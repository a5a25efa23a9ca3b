package bookmaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerSecond = 5.0
	DefaultOddsPerSecond     = 1.0

	// maxTrackedSyncs bounds the per-event sync history; older entries are
	// pruned once it is exceeded.
	maxTrackedSyncs = 5000
)

// Session wraps one bookmaker's adapter with its per-instance state: request
// and odds limiters, the circuit breaker, auth retry and the per-event sync
// history. Sessions are created by the Registry and live for the process.
type Session struct {
	key      string
	notifier ports.Notifier
	now      func() time.Time

	mu          sync.Mutex
	adapter     ports.Adapter
	cfg         domain.BookmakerConfig
	limiter     *rate.Limiter
	oddsLimiter *rate.Limiter
	breaker     domain.CircuitBreaker
	lastSync    map[string]time.Time
}

var _ ports.BookmakerSession = (*Session)(nil)

func newSession(bk domain.Bookmaker, adapter ports.Adapter, notifier ports.Notifier, now func() time.Time) *Session {
	s := &Session{
		key:      bk.Key,
		notifier: notifier,
		now:      now,
		lastSync: make(map[string]time.Time),
		breaker: domain.CircuitBreaker{
			Window:    domain.BreakerWindow,
			Threshold: domain.BreakerThreshold,
			Cooldown:  domain.BreakerCooldown,
		},
	}
	s.reconfigure(bk, adapter)
	return s
}

// reconfigure swaps adapter and limits in place. Breaker state and sync
// history survive.
func (s *Session) reconfigure(bk domain.Bookmaker, adapter ports.Adapter) {
	rps := bk.Config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	ops := bk.Config.OddsPerSecond
	if ops <= 0 {
		ops = DefaultOddsPerSecond
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter = adapter
	s.cfg = bk.Config
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		s.oddsLimiter = rate.NewLimiter(rate.Limit(ops), 1)
		return
	}
	s.limiter.SetLimit(rate.Limit(rps))
	s.oddsLimiter.SetLimit(rate.Limit(ops))
}

// Key returns the bookmaker key.
func (s *Session) Key() string { return s.key }

func (s *Session) current() ports.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Tier reports the tier of the wrapped adapter.
func (s *Session) Tier() ports.Tier { return s.current().Tier() }

// HasCredentials reports whether the wrapped adapter can authenticate.
func (s *Session) HasCredentials() bool { return s.current().HasCredentials() }

// BreakerOpenUntil returns when the breaker closes again; zero when closed.
func (s *Session) BreakerOpenUntil() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breaker.Allow(s.now()) {
		return time.Time{}
	}
	return s.breaker.OpenUntil()
}

// ShouldSyncEvent reports whether the event's odds are due for a refresh:
// events more than 12h out refresh hourly, 6 to 12h out every 10 minutes,
// closer or live events on every pass. Never-synced events are always due.
func (s *Session) ShouldSyncEvent(eventID string, commenceTime time.Time) bool {
	s.mu.Lock()
	last, ok := s.lastSync[eventID]
	s.mu.Unlock()
	if !ok {
		return true
	}

	now := s.now()
	untilStart := commenceTime.Sub(now)
	since := now.Sub(last)
	switch {
	case untilStart > 12*time.Hour:
		return since > time.Hour
	case untilStart > 6*time.Hour:
		return since > 10*time.Minute
	}
	return true
}

// RecordSync remembers that the event was just refreshed.
func (s *Session) RecordSync(eventID string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync[eventID] = now
	if len(s.lastSync) > maxTrackedSyncs {
		for id, at := range s.lastSync {
			if now.Sub(at) > 24*time.Hour {
				delete(s.lastSync, id)
			}
		}
	}
}

// Authorize (re)establishes the adapter session.
func (s *Session) Authorize(ctx context.Context) error {
	return s.call(ctx, "authorize", false, func(a ports.Adapter) error {
		return a.Authorize(ctx)
	})
}

func (s *Session) ObtainOdds(ctx context.Context, leagueKey string, events []domain.EventRef, allowedMarkets []string) ([]domain.OddsUpdate, error) {
	var out []domain.OddsUpdate
	err := s.call(ctx, "obtain_odds", true, func(a ports.Adapter) error {
		var err error
		out, err = a.ObtainOdds(ctx, leagueKey, events, allowedMarkets)
		return err
	})
	return out, err
}

func (s *Session) FetchLeagueOdds(ctx context.Context, leagueKey string, allowedMarkets []string) ([]domain.EventOdds, error) {
	var out []domain.EventOdds
	err := s.call(ctx, "fetch_league_odds", true, func(a ports.Adapter) error {
		var err error
		out, err = a.FetchLeagueOdds(ctx, leagueKey, allowedMarkets)
		return err
	})
	return out, err
}

func (s *Session) PlaceBet(ctx context.Context, bet domain.Bet) (domain.PlaceResult, error) {
	var out domain.PlaceResult
	err := s.call(ctx, "place_bet", false, func(a ports.Adapter) error {
		var err error
		out, err = a.PlaceBet(ctx, bet)
		return err
	})
	return out, err
}

func (s *Session) AccountBalance(ctx context.Context) (domain.Balance, error) {
	var out domain.Balance
	err := s.call(ctx, "account_balance", false, func(a ports.Adapter) error {
		var err error
		out, err = a.AccountBalance(ctx)
		return err
	})
	return out, err
}

func (s *Session) OrderStatus(ctx context.Context, externalID string) (domain.OrderStatus, error) {
	var out domain.OrderStatus
	err := s.call(ctx, "order_status", false, func(a ports.Adapter) error {
		var err error
		out, err = a.OrderStatus(ctx, externalID)
		return err
	})
	return out, err
}

func (s *Session) BetSettlement(ctx context.Context, bet domain.Bet) (domain.Settlement, error) {
	var out domain.Settlement
	err := s.call(ctx, "bet_settlement", false, func(a ports.Adapter) error {
		var err error
		out, err = a.BetSettlement(ctx, bet)
		return err
	})
	return out, err
}

func (s *Session) EventResults(ctx context.Context, eventIDs []string) ([]domain.EventResult, error) {
	var out []domain.EventResult
	err := s.call(ctx, "event_results", false, func(a ports.Adapter) error {
		var err error
		out, err = a.EventResults(ctx, eventIDs)
		return err
	})
	return out, err
}

// call runs fn against the adapter behind the breaker and limiters. A
// 401/403 triggers one Authorize and one retry, never more.
func (s *Session) call(ctx context.Context, op string, odds bool, fn func(ports.Adapter) error) error {
	if !s.allow() {
		return fmt.Errorf("bookmaker %s: %s: %w", s.key, op, ErrCircuitOpen)
	}
	if err := s.wait(ctx, odds); err != nil {
		return fmt.Errorf("bookmaker %s: %s: rate limiter: %w", s.key, op, err)
	}

	adapter := s.current()
	err := invoke(op, adapter, fn)
	if IsAuthError(err) && op != "authorize" {
		slog.Info("bookmaker: auth rejected, re-authorizing", "bookmaker", s.key, "op", op)
		if aerr := s.wait(ctx, false); aerr != nil {
			return fmt.Errorf("bookmaker %s: %s: rate limiter: %w", s.key, op, aerr)
		}
		if aerr := invoke("authorize", adapter, func(a ports.Adapter) error { return a.Authorize(ctx) }); aerr != nil {
			err = fmt.Errorf("re-authorize: %w", aerr)
		} else {
			if werr := s.wait(ctx, odds); werr != nil {
				return fmt.Errorf("bookmaker %s: %s: rate limiter: %w", s.key, op, werr)
			}
			err = invoke(op, adapter, fn)
		}
	}

	s.record(ctx, op, err)
	if err != nil {
		return fmt.Errorf("bookmaker %s: %s: %w", s.key, op, err)
	}
	return nil
}

func (s *Session) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breaker.Allow(s.now())
}

func (s *Session) wait(ctx context.Context, odds bool) error {
	s.mu.Lock()
	limiter, oddsLimiter := s.limiter, s.oddsLimiter
	s.mu.Unlock()

	if odds {
		if err := oddsLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	return limiter.Wait(ctx)
}

// record feeds the breaker and notifies once when it trips.
func (s *Session) record(ctx context.Context, op string, err error) {
	if !countsAsFailure(err) {
		return
	}
	now := s.now()
	s.mu.Lock()
	tripped := s.breaker.RecordFailure(now)
	until := s.breaker.OpenUntil()
	s.mu.Unlock()

	slog.Warn("bookmaker: call failed", "bookmaker", s.key, "op", op, "err", err)
	if !tripped {
		return
	}
	slog.Error("bookmaker: circuit open", "bookmaker", s.key, "until", until.Format(time.RFC3339))
	if s.notifier != nil {
		s.notifier.Send(context.WithoutCancel(ctx), ports.KindCircuitOpen, map[string]any{
			"bookmaker": s.key,
			"until":     until,
			"error":     err.Error(),
		})
	}
}

// invoke runs fn, turning an adapter panic into an error.
func invoke(op string, a ports.Adapter, fn func(ports.Adapter) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn(a)
}
