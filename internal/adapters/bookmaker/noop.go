package bookmaker

import (
	"context"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// NoopName is the registry name of the no-op plug-in.
const NoopName = "noop"

// Noop is the adapter of simple bookmakers: odds are ingested elsewhere and
// nothing can be traded.
type Noop struct {
	cfg domain.BookmakerConfig
}

var _ ports.Adapter = (*Noop)(nil)

// NewNoop returns a no-op adapter for bk.
func NewNoop(bk domain.Bookmaker) *Noop {
	return &Noop{cfg: bk.Config}
}

func (n *Noop) Tier() ports.Tier { return ports.TierNone }

func (n *Noop) HasCredentials() bool { return n.cfg.HasCredentials() }

func (n *Noop) Authorize(context.Context) error { return nil }

func (n *Noop) ObtainOdds(context.Context, string, []domain.EventRef, []string) ([]domain.OddsUpdate, error) {
	return nil, nil
}

func (n *Noop) FetchLeagueOdds(context.Context, string, []string) ([]domain.EventOdds, error) {
	return nil, nil
}

func (n *Noop) PlaceBet(context.Context, domain.Bet) (domain.PlaceResult, error) {
	return domain.PlaceResult{Status: domain.BetError, Message: "placing bets not supported"}, ErrNotSupported
}

func (n *Noop) AccountBalance(context.Context) (domain.Balance, error) {
	return domain.Balance{Currency: n.cfg.Currency}, nil
}

func (n *Noop) OrderStatus(context.Context, string) (domain.OrderStatus, error) {
	return domain.OrderStatus{}, ErrNotSupported
}

// BetSettlement reports the bet as it stands; a simple bookmaker cannot
// settle on its own.
func (n *Noop) BetSettlement(_ context.Context, bet domain.Bet) (domain.Settlement, error) {
	payout := 0.0
	if bet.Payout != nil {
		payout = *bet.Payout
	}
	return domain.Settlement{Status: bet.Status, Payout: payout}, nil
}

func (n *Noop) EventResults(context.Context, []string) ([]domain.EventResult, error) {
	return nil, nil
}
