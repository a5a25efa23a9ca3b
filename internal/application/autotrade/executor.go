// Package autotrade places bets for presets flagged auto_trade. One
// invocation walks every such preset, placing at most one bet per bookmaker
// across all of them.
package autotrade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// MinStake is the smallest stake worth placing.
const MinStake = 0.1

// Scanner is the part of the opportunity scanner the executor needs.
type Scanner interface {
	Scan(ctx context.Context, p domain.Preset, opts scanner.Options) ([]domain.Opportunity, error)
}

// Summary counts what one invocation did.
type Summary struct {
	Presets int
	Placed  int
	Failed  int
}

// Executor runs the auto-trade state machine:
// scan, then attempt each opportunity in order, restarting the scan after
// every placement, until a full pass places nothing.
type Executor struct {
	scanner    Scanner
	presets    ports.PresetStore
	bookmakers ports.BookmakerStore
	bets       ports.BetStore
	sessions   ports.SessionProvider
	notifier   ports.Notifier
	now        func() time.Time
}

// New wires the executor. notifier may be nil.
func New(
	sc Scanner,
	presets ports.PresetStore,
	bookmakers ports.BookmakerStore,
	bets ports.BetStore,
	sessions ports.SessionProvider,
	notifier ports.Notifier,
) *Executor {
	return &Executor{
		scanner:    sc,
		presets:    presets,
		bookmakers: bookmakers,
		bets:       bets,
		sessions:   sessions,
		notifier:   notifier,
		now:        time.Now,
	}
}

// WithClock replaces the clock.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Run executes one invocation over every active auto-trade preset. Per
// opportunity failures are logged and counted, never returned.
func (e *Executor) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	presets, err := e.presets.ActivePresets(ctx)
	if err != nil {
		return sum, fmt.Errorf("autotrade.Run: presets: %w", err)
	}
	bks, err := e.bookmakers.ActiveBookmakers(ctx, domain.ModelAPI)
	if err != nil {
		return sum, fmt.Errorf("autotrade.Run: bookmakers: %w", err)
	}
	if len(bks) == 0 {
		slog.Debug("autotrade: no active api bookmakers")
		return sum, nil
	}
	keys := make([]string, len(bks))
	for i, b := range bks {
		keys[i] = b.Key
	}

	used := make(map[string]bool)
	for _, p := range presets {
		if !p.AutoTrade {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if p.Simulate && p.SimulateBankroll == nil {
			slog.Error("autotrade: simulate preset without simulate_bankroll, skipping", "preset", p.ID, "name", p.Name)
			continue
		}
		sum.Presets++
		placed, failed := e.runPreset(ctx, p, keys, used)
		sum.Placed += placed
		sum.Failed += failed
	}

	slog.Info("autotrade: invocation complete",
		"presets", sum.Presets, "placed", sum.Placed, "failed", sum.Failed, "bookmakers_used", len(used))
	return sum, nil
}

// runPreset loops scan -> attempt until a pass places nothing.
func (e *Executor) runPreset(ctx context.Context, p domain.Preset, keys []string, used map[string]bool) (placed, failed int) {
	for ctx.Err() == nil {
		opps, err := e.scanner.Scan(ctx, p, scanner.Options{BookmakerKeys: keys})
		if err != nil {
			slog.Error("autotrade: scan failed", "preset", p.ID, "err", err)
			return placed, failed
		}

		var (
			stats    pipelineStats
			progress bool
		)
		for _, opp := range opps {
			sess, stake, reason, skip := e.gateCheck(ctx, p, opp, used)
			if skip {
				stats.record(reason)
				continue
			}
			if e.place(ctx, p, opp, sess, stake) {
				used[opp.Bookmaker.Key] = true
				placed++
				progress = true
				break
			}
			stats.record(skipReasonFailed)
			failed++
		}
		stats.log(p.ID, len(opps), progress)
		if !progress {
			return placed, failed
		}
	}
	return placed, failed
}

type skipReason int

const (
	skipReasonUsed skipReason = iota
	skipReasonModel
	skipReasonAdapter
	skipReasonCredentials
	skipReasonStake
	skipReasonBalance
	skipReasonDelay
	skipReasonFailed
)

// gateCheck applies the placement gates in order and sizes the stake.
func (e *Executor) gateCheck(ctx context.Context, p domain.Preset, opp domain.Opportunity, used map[string]bool) (ports.BookmakerSession, float64, skipReason, bool) {
	bk := opp.Bookmaker
	if used[bk.Key] {
		return nil, 0, skipReasonUsed, true
	}
	if bk.ModelType != domain.ModelAPI {
		return nil, 0, skipReasonModel, true
	}
	sess, err := e.sessions.Session(ctx, bk)
	if err != nil {
		slog.Warn("autotrade: adapter unavailable", "bookmaker", bk.Key, "err", err)
		return nil, 0, skipReasonAdapter, true
	}
	if sess.Tier() != ports.TierAPI {
		return nil, 0, skipReasonAdapter, true
	}
	if !sess.HasCredentials() {
		return nil, 0, skipReasonCredentials, true
	}

	bankroll := bk.Balance
	if p.Simulate {
		bankroll = *p.SimulateBankroll
	}
	price := opp.Odds.Price
	stake := domain.CalculateStake(domain.StakeParams{
		Strategy:        p.StakingStrategy,
		Bankroll:        bankroll,
		Probability:     opp.Probability(),
		Odds:            &price,
		PercentRisk:     p.PercentRisk,
		KellyMultiplier: p.KellyMultiplier,
		MaxStake:        p.MaxStake,
		DefaultStake:    p.DefaultStake,
	})
	if stake < MinStake {
		return nil, 0, skipReasonStake, true
	}
	if !p.Simulate && stake > bk.Balance {
		return nil, 0, skipReasonBalance, true
	}

	if delay := time.Duration(bk.Config.BetDelaySeconds) * time.Second; delay > 0 {
		last, ok, err := e.bets.LastBetAt(ctx, bk.Key)
		if err != nil {
			slog.Warn("autotrade: last bet lookup failed", "bookmaker", bk.Key, "err", err)
			return nil, 0, skipReasonDelay, true
		}
		if ok && e.now().Sub(last) < delay {
			return nil, 0, skipReasonDelay, true
		}
	}
	return sess, stake, 0, false
}

// place submits the bet, or records it as placed in simulate mode, and
// persists the outcome. Reports whether the bet was placed.
func (e *Executor) place(ctx context.Context, p domain.Preset, opp domain.Opportunity, sess ports.BookmakerSession, stake float64) bool {
	now := e.now().UTC()
	evSnap, mkSnap, oddsSnap := opp.Snapshot()
	bet := domain.Bet{
		ID:             uuid.NewString(),
		PresetID:       p.ID,
		EventID:        opp.Event.ID,
		BookmakerKey:   opp.Bookmaker.Key,
		MarketKey:      opp.Market.Key,
		Selection:      opp.Odds.NormalizedSelection,
		Price:          opp.Odds.Price,
		Stake:          stake,
		PlacedAt:       now,
		EventSnapshot:  evSnap,
		MarketSnapshot: mkSnap,
		OddsSnapshot:   oddsSnap,
	}

	debit := 0.0
	if p.Simulate {
		bet.Status = domain.BetPlaced
		bet.ExternalID = fmt.Sprintf("SIM-%d", now.Unix())
		bet.Message = "simulated"
	} else {
		slog.Info("autotrade: PLACING BET",
			"preset", p.ID,
			"bookmaker", bet.BookmakerKey,
			"event", opp.Event.Name(),
			"market", bet.MarketKey,
			"selection", bet.Selection,
			"price", bet.Price,
			"stake", fmt.Sprintf("%.2f", stake),
		)
		res, err := sess.PlaceBet(ctx, bet)
		if err != nil || !res.Success {
			bet.Status = domain.BetFailed
			bet.Message = res.Message
			if err != nil {
				bet.Message = err.Error()
			}
			if rerr := e.bets.RecordBet(ctx, bet, 0); rerr != nil {
				slog.Error("autotrade: record failed bet", "bookmaker", bet.BookmakerKey, "err", rerr)
			}
			slog.Warn("autotrade: placement failed", "bookmaker", bet.BookmakerKey, "msg", bet.Message)
			e.notify(ctx, ports.KindBetFailed, bet)
			return false
		}
		bet.Status = res.Status
		if bet.Status == "" {
			bet.Status = domain.BetPlaced
		}
		bet.ExternalID = res.BetID
		bet.Message = res.Message
		debit = stake
	}

	if err := e.bets.RecordBet(ctx, bet, debit); err != nil {
		// The bookmaker may hold the bet; the next run must not double it.
		slog.Error("autotrade: record bet failed", "bookmaker", bet.BookmakerKey, "external_id", bet.ExternalID, "err", err)
		return !p.Simulate
	}

	if item, ok := domain.HideFor(p.AfterTradeAction, p.ID, bet.EventID, bet.MarketKey, bet.Selection, now); ok {
		if _, err := e.presets.AddHiddenItem(ctx, item); err != nil {
			slog.Warn("autotrade: after-trade hide failed", "preset", p.ID, "err", err)
		}
	}
	if p.OtherConfig.NotifyNewBet() {
		e.notify(ctx, ports.KindNewBet, bet)
	}
	slog.Info("autotrade: placed",
		"preset", p.ID,
		"bookmaker", bet.BookmakerKey,
		"bet", bet.ID,
		"status", bet.Status,
		"simulate", p.Simulate,
	)
	return true
}

func (e *Executor) notify(ctx context.Context, kind string, b domain.Bet) {
	if e.notifier == nil {
		return
	}
	payload := map[string]any{
		"bookmaker": b.BookmakerKey,
		"event":     b.EventSnapshot.HomeTeam + " vs " + b.EventSnapshot.AwayTeam,
		"market":    b.MarketKey,
		"selection": b.Selection,
		"price":     b.Price,
		"stake":     b.Stake,
		"status":    string(b.Status),
	}
	if b.Message != "" {
		payload["message"] = b.Message
	}
	e.notifier.Send(ctx, kind, payload)
}

type pipelineStats struct {
	used, model, adapter, credentials, stake, balance, delay, failed int
}

func (s *pipelineStats) record(r skipReason) {
	switch r {
	case skipReasonUsed:
		s.used++
	case skipReasonModel:
		s.model++
	case skipReasonAdapter:
		s.adapter++
	case skipReasonCredentials:
		s.credentials++
	case skipReasonStake:
		s.stake++
	case skipReasonBalance:
		s.balance++
	case skipReasonDelay:
		s.delay++
	case skipReasonFailed:
		s.failed++
	}
}

func (s *pipelineStats) log(presetID string, totalOpps int, placed bool) {
	slog.Debug("autotrade: placement pipeline",
		"preset", presetID,
		"total_opps", totalOpps,
		"skip_used", s.used,
		"skip_model", s.model,
		"skip_adapter", s.adapter,
		"skip_credentials", s.credentials,
		"skip_stake", s.stake,
		"skip_balance", s.balance,
		"skip_delay", s.delay,
		"failed", s.failed,
		"placed", placed,
	)
}
