package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/adapters/notify"
	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/application/autotrade"
	"github.com/alejandrodnm/valuebot/internal/application/fairodds"
	"github.com/alejandrodnm/valuebot/internal/application/livesync"
	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/application/settlement"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

// cycle agrupa los pasos periódicos del bot.
type cycle struct {
	cfg       *config.Config
	store     *storage.Store
	estimator *fairodds.Estimator
	scanner   *scanner.Scanner
	syncer    *livesync.Orchestrator
	executor  *autotrade.Executor
	settler   *settlement.Service
	console   *notify.Console
	table     bool
}

// seed carga el catálogo y los bookmakers configurados. Los balances de
// bookmakers existentes no se tocan.
func seed(ctx context.Context, store *storage.Store, cfg *config.Config) error {
	sports, leagues := cfg.Catalog.Domain()
	for _, sp := range sports {
		if err := store.UpsertSport(ctx, sp); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for _, l := range leagues {
		if err := store.UpsertLeague(ctx, l); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for _, bk := range cfg.BookmakerSeeds() {
		if err := store.UpsertBookmaker(ctx, bk); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	slog.Info("seed: catalog loaded", "sports", len(sports), "leagues", len(leagues), "bookmakers", len(cfg.Bookmakers))
	return nil
}

// every ejecuta fn de inmediato y luego en cada tick hasta que ctx se cancela.
func (c *cycle) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (c *cycle) recompute(ctx context.Context) {
	n, err := c.estimator.RecomputeAll(ctx)
	if err != nil {
		slog.Error("cycle: recompute failed", "err", err)
		return
	}
	slog.Info("cycle: fair odds recomputed", "rows", n)
}

// sync descarga los árboles de liga, refresca cuotas de eventos conocidos,
// liquida apuestas y limpia ocultos expirados.
func (c *cycle) sync(ctx context.Context) {
	start := time.Now()
	apis, err := c.store.ActiveBookmakers(ctx, domain.ModelAPI)
	if err != nil {
		slog.Error("cycle: list bookmakers failed", "err", err)
		return
	}

	trees := 0
	for _, bk := range apis {
		for _, league := range c.cfg.Engine.Leagues {
			if ctx.Err() != nil {
				return
			}
			n, err := c.syncer.SyncLeagueTree(ctx, bk, league, nil)
			if err != nil {
				slog.Warn("cycle: league tree failed", "bookmaker", bk.Key, "league", league, "err", err)
				continue
			}
			trees += n
		}
	}

	synced, err := c.syncer.SyncAll(ctx)
	if err != nil {
		slog.Error("cycle: sync failed", "err", err)
	}

	for _, bk := range apis {
		if ctx.Err() != nil {
			return
		}
		res, err := c.settler.SyncResults(ctx, bk.Key)
		if err != nil {
			slog.Warn("cycle: settlement failed", "bookmaker", bk.Key, "err", err)
			continue
		}
		if res.Confirmed+res.Settled+res.Results > 0 {
			slog.Info("cycle: bets reconciled", "bookmaker", bk.Key,
				"confirmed", res.Confirmed, "settled", res.Settled, "results", res.Results)
		}
	}

	pruned, err := c.store.PruneExpiredHidden(ctx, time.Now())
	if err != nil {
		slog.Warn("cycle: prune hidden failed", "err", err)
	}

	slog.Info("cycle: sync done",
		"bookmakers", len(apis),
		"tree_rows", trees,
		"synced_rows", synced,
		"hidden_pruned", pruned,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if c.table {
		c.print(ctx)
	}
}

func (c *cycle) autotrade(ctx context.Context) {
	sum, err := c.executor.Run(ctx)
	if err != nil {
		slog.Error("cycle: autotrade failed", "err", err)
		return
	}
	if sum.Placed+sum.Failed > 0 {
		slog.Info("cycle: autotrade done", "presets", sum.Presets, "placed", sum.Placed, "failed", sum.Failed)
	}
}

// print muestra las oportunidades de cada preset activo y las apuestas abiertas.
func (c *cycle) print(ctx context.Context) {
	presets, err := c.store.ActivePresets(ctx)
	if err != nil {
		slog.Error("cycle: list presets failed", "err", err)
		return
	}
	for _, p := range presets {
		opps, err := c.scanner.Scan(ctx, p, scanner.Options{})
		if err != nil {
			slog.Warn("cycle: scan failed", "preset", p.ID, "err", err)
			continue
		}
		c.console.PrintOpportunities(p, opps)
	}

	open, err := c.store.BetsByStatus(ctx, "", domain.BetPending, domain.BetPlaced, domain.BetOpen)
	if err != nil {
		slog.Warn("cycle: list bets failed", "err", err)
		return
	}
	c.console.PrintBets(open)
}
