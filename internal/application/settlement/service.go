// Package settlement moves placed bets to their results and keeps the
// bookmaker balances in step.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// simulatedPrefix marks bets that never reached a bookmaker; they move no
// money.
const simulatedPrefix = "SIM-"

// Service settles and reopens bets.
type Service struct {
	bets       ports.BetStore
	odds       ports.OddsStore
	bookmakers ports.BookmakerStore
	sessions   ports.SessionProvider
	notifier   ports.Notifier
	now        func() time.Time
}

// New returns a settlement service. notifier may be nil.
func New(bets ports.BetStore, odds ports.OddsStore, bookmakers ports.BookmakerStore, sessions ports.SessionProvider, notifier ports.Notifier) *Service {
	return &Service{
		bets:       bets,
		odds:       odds,
		bookmakers: bookmakers,
		sessions:   sessions,
		notifier:   notifier,
		now:        time.Now,
	}
}

// WithClock replaces the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Settle moves an open or placed bet to result. payout overrides the
// derived one (stake·price when won, the stake when void).
func (s *Service) Settle(ctx context.Context, betID string, result domain.BetStatus, payout *float64) error {
	b, err := s.bets.Bet(ctx, betID)
	if err != nil {
		return fmt.Errorf("settlement.Settle: %w", err)
	}
	st, err := domain.DefaultSettlement(b, result)
	if err != nil {
		return fmt.Errorf("settlement.Settle: %w", err)
	}
	if payout != nil {
		st.Payout = *payout
	}
	return s.apply(ctx, b, st)
}

func (s *Service) apply(ctx context.Context, b domain.Bet, st domain.Settlement) error {
	credit := st.BalanceCredit(b.Stake)
	if simulated(b) {
		credit = 0
	}
	if err := s.bets.SettleBet(ctx, b.ID, st, credit, s.now()); err != nil {
		return fmt.Errorf("settlement.Settle: %w", err)
	}
	slog.Info("settlement: bet settled",
		"bet", b.ID, "bookmaker", b.BookmakerKey, "status", st.Status,
		"payout", fmt.Sprintf("%.2f", st.Payout), "credit", fmt.Sprintf("%.2f", credit))

	if s.notifier != nil {
		s.notifier.Send(ctx, ports.KindSettled, map[string]any{
			"bookmaker": b.BookmakerKey,
			"event":     b.EventSnapshot.HomeTeam + " vs " + b.EventSnapshot.AwayTeam,
			"selection": b.Selection,
			"status":    string(st.Status),
			"stake":     b.Stake,
			"payout":    st.Payout,
		})
	}
	return nil
}

// Reopen moves a settled bet back to open and takes back what settling it
// credited.
func (s *Service) Reopen(ctx context.Context, betID string) error {
	b, err := s.bets.Bet(ctx, betID)
	if err != nil {
		return fmt.Errorf("settlement.Reopen: %w", err)
	}
	if !b.Status.IsTerminal() {
		return fmt.Errorf("settlement.Reopen: %s is %s: %w", betID, b.Status, domain.ErrInvalidTransition)
	}
	st := domain.Settlement{Status: b.Status}
	if b.Payout != nil {
		st.Payout = *b.Payout
	}
	reversal := st.BalanceCredit(b.Stake)
	if simulated(b) {
		reversal = 0
	}
	if err := s.bets.ReopenBet(ctx, betID, reversal); err != nil {
		return fmt.Errorf("settlement.Reopen: %w", err)
	}
	slog.Info("settlement: bet reopened", "bet", betID, "reversal", fmt.Sprintf("%.2f", reversal))
	return nil
}

// Result counts what SyncResults did.
type Result struct {
	Confirmed int
	Settled   int
	Results   int
}

// SyncResults asks the bookmaker about its unsettled bets: pending bets are
// confirmed or failed from the order status, open and placed bets are
// settled from the bookmaker's settlement. A bookmaker that cannot report
// settlements falls back on results recorded on the odds rows.
func (s *Service) SyncResults(ctx context.Context, bookmakerKey string) (Result, error) {
	var res Result

	bk, err := s.bookmakers.Bookmaker(ctx, bookmakerKey)
	if err != nil {
		return res, fmt.Errorf("settlement.SyncResults: %w", err)
	}
	sess, err := s.sessions.Session(ctx, bk)
	if err != nil {
		return res, fmt.Errorf("settlement.SyncResults: %w", err)
	}

	pending, err := s.bets.BetsByStatus(ctx, bookmakerKey, domain.BetPending)
	if err != nil {
		return res, fmt.Errorf("settlement.SyncResults: %w", err)
	}
	for _, b := range pending {
		if b.ExternalID == "" {
			continue
		}
		order, err := sess.OrderStatus(ctx, b.ExternalID)
		if err != nil {
			if !errors.Is(err, ports.ErrNotSupported) {
				slog.Warn("settlement: order status failed", "bet", b.ID, "err", err)
			}
			continue
		}
		if order.Status == b.Status || !b.Status.CanTransition(order.Status) || order.Status.IsTerminal() {
			continue
		}
		if err := s.bets.UpdateBetStatus(ctx, b.ID, order.Status, ""); err != nil {
			slog.Warn("settlement: status update failed", "bet", b.ID, "err", err)
			continue
		}
		res.Confirmed++
	}

	open, err := s.bets.BetsByStatus(ctx, bookmakerKey, domain.BetOpen, domain.BetPlaced)
	if err != nil {
		return res, fmt.Errorf("settlement.SyncResults: %w", err)
	}
	if len(open) == 0 {
		return res, nil
	}
	res.Results = s.ingestResults(ctx, sess, open)

	for _, b := range open {
		if ctx.Err() != nil {
			return res, fmt.Errorf("settlement.SyncResults: %w", ctx.Err())
		}
		st, ok := s.settlementOf(ctx, sess, b)
		if !ok {
			continue
		}
		if err := s.apply(ctx, b, st); err != nil {
			slog.Warn("settlement: settle failed", "bet", b.ID, "err", err)
			continue
		}
		res.Settled++
	}
	slog.Info("settlement: sync complete",
		"bookmaker", bookmakerKey, "confirmed", res.Confirmed, "results", res.Results, "settled", res.Settled)
	return res, nil
}

// ingestResults records the final results the bookmaker reports for the
// events of the open bets.
func (s *Service) ingestResults(ctx context.Context, sess ports.BookmakerSession, open []domain.Bet) int {
	seen := make(map[string]bool)
	var ids []string
	for _, b := range open {
		if !seen[b.EventID] {
			seen[b.EventID] = true
			ids = append(ids, b.EventID)
		}
	}
	results, err := sess.EventResults(ctx, ids)
	if err != nil {
		if !errors.Is(err, ports.ErrNotSupported) {
			slog.Warn("settlement: event results failed", "bookmaker", sess.Key(), "err", err)
		}
		return 0
	}
	n := 0
	for _, r := range results {
		if !r.Result.IsTerminal() {
			continue
		}
		if err := s.odds.SetSelectionResult(ctx, r); err != nil {
			slog.Warn("settlement: store result failed", "event", r.EventID, "err", err)
			continue
		}
		n++
	}
	return n
}

func (s *Service) settlementOf(ctx context.Context, sess ports.BookmakerSession, b domain.Bet) (domain.Settlement, bool) {
	st, err := sess.BetSettlement(ctx, b)
	if err == nil {
		return st, st.Status.IsTerminal()
	}
	if !errors.Is(err, ports.ErrNotSupported) {
		slog.Debug("settlement: no settlement yet", "bet", b.ID, "err", err)
		return domain.Settlement{}, false
	}

	status, ok, err := s.odds.SelectionResult(ctx, b.EventID, b.MarketKey, b.Selection)
	if err != nil {
		slog.Warn("settlement: selection result failed", "bet", b.ID, "err", err)
		return domain.Settlement{}, false
	}
	if !ok {
		return domain.Settlement{}, false
	}
	st, err = domain.DefaultSettlement(b, status)
	if err != nil {
		return domain.Settlement{}, false
	}
	return st, true
}

func simulated(b domain.Bet) bool {
	return strings.HasPrefix(b.ExternalID, simulatedPrefix)
}
