package ports

import (
	"context"
	"errors"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// ErrNotSupported is returned by adapters for operations their tier lacks.
var ErrNotSupported = errors.New("bookmaker: operation not supported")

// Tier is the integration level an adapter offers.
type Tier int

const (
	// TierNone adapters only exist so every bookmaker resolves to something;
	// every trading call is unsupported.
	TierNone Tier = iota
	// TierAPI adapters talk to a real bookmaker API.
	TierAPI
)

// Adapter is the contract a bookmaker plug-in implements. Every method may
// fail independently; none may panic the caller.
type Adapter interface {
	// Tier reports whether this adapter can trade.
	Tier() Tier

	// HasCredentials reports whether the adapter is configured to authenticate.
	HasCredentials() bool

	// Authorize (re)establishes the API session.
	Authorize(ctx context.Context) error

	// ObtainOdds refreshes prices for the given events of a league. Returned
	// updates carry the internal event id in ExternalEventID.
	ObtainOdds(ctx context.Context, leagueKey string, events []domain.EventRef, allowedMarkets []string) ([]domain.OddsUpdate, error)

	// FetchLeagueOdds returns the full event -> bookmaker -> market -> outcome
	// tree for a league, keyed by the bookmaker's own event ids.
	FetchLeagueOdds(ctx context.Context, leagueKey string, allowedMarkets []string) ([]domain.EventOdds, error)

	// PlaceBet submits a bet. A rejected bet is reported with Success=false,
	// not as an error.
	PlaceBet(ctx context.Context, bet domain.Bet) (domain.PlaceResult, error)

	// AccountBalance returns the available balance at the bookmaker.
	AccountBalance(ctx context.Context) (domain.Balance, error)

	// OrderStatus returns the bookmaker's view of a placed bet.
	OrderStatus(ctx context.Context, externalID string) (domain.OrderStatus, error)

	// BetSettlement returns the settled result of a bet. Adapters without a
	// payout of their own should derive it with domain.DefaultSettlement.
	BetSettlement(ctx context.Context, bet domain.Bet) (domain.Settlement, error)

	// EventResults returns final results for the given events.
	EventResults(ctx context.Context, eventIDs []string) ([]domain.EventResult, error)
}

// SyncPolicy throttles odds refreshes per event.
type SyncPolicy interface {
	ShouldSyncEvent(eventID string, commenceTime time.Time) bool
	RecordSync(eventID string)
}

// BookmakerSession is a long-lived, rate-limited, circuit-broken adapter for
// one bookmaker.
type BookmakerSession interface {
	Adapter
	SyncPolicy
	Key() string
}

// SessionProvider hands out the session of a bookmaker, creating it on first
// use.
type SessionProvider interface {
	Session(ctx context.Context, bk domain.Bookmaker) (BookmakerSession, error)
}
