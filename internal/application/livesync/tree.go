package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// SyncLeagueTree ingests a bookmaker's full league snapshot. Each bookmaker
// event is resolved onto an internal event of the league by fuzzy name
// match; unresolved events are skipped (their mapping stays pending).
// Returns the number of odds rows written.
func (o *Orchestrator) SyncLeagueTree(ctx context.Context, bk domain.Bookmaker, leagueKey string, allowedMarkets []string) (int, error) {
	if o.resolver == nil {
		return 0, errors.New("livesync.SyncLeagueTree: no event resolver configured")
	}
	sess, err := o.sessions.Session(ctx, bk)
	if err != nil {
		return 0, fmt.Errorf("livesync.SyncLeagueTree: %w", err)
	}
	tree, err := sess.FetchLeagueOdds(ctx, leagueKey, allowedMarkets)
	if err != nil {
		return 0, fmt.Errorf("livesync.SyncLeagueTree: %s/%s: %w", bk.Key, leagueKey, err)
	}
	if len(tree) == 0 {
		return 0, nil
	}

	internal, err := o.odds.LeagueEvents(ctx, leagueKey)
	if err != nil {
		return 0, fmt.Errorf("livesync.SyncLeagueTree: %w", err)
	}
	byID := make(map[string]domain.Event, len(internal))
	for _, e := range internal {
		byID[e.ID] = e
	}

	var written, skipped int
	for _, ext := range tree {
		name := ext.HomeTeam + " vs " + ext.AwayTeam
		id, ok, err := o.resolver.Resolve(ctx, bk.Key, domain.MappingEvent, ext.ID, name, leagueKey)
		if err != nil {
			return written, fmt.Errorf("livesync.SyncLeagueTree: resolve %s: %w", ext.ID, err)
		}
		ev, known := byID[id]
		if !ok || !known {
			skipped++
			continue
		}
		for _, bo := range ext.Bookmakers {
			if bo.SID == "" {
				bo.SID = ext.ID
			}
			n, err := o.odds.UpsertEventOdds(ctx, ev, renameTeams(bo, ext, ev))
			if err != nil {
				slog.Warn("livesync: upsert event odds failed", "bookmaker", bo.Key, "event", ev.ID, "err", err)
				continue
			}
			written += n
		}
	}
	slog.Info("livesync: league tree ingested",
		"bookmaker", bk.Key, "league", leagueKey,
		"events", len(tree), "unresolved", skipped, "rows", written)
	return written, nil
}

// renameTeams rewrites outcomes named after the bookmaker's team names to the
// internal ones so selections normalize to home/away.
func renameTeams(bo domain.BookmakerOdds, ext domain.EventOdds, ev domain.Event) domain.BookmakerOdds {
	out := bo
	out.Markets = make([]domain.MarketOdds, len(bo.Markets))
	for i, mk := range bo.Markets {
		m := mk
		m.Outcomes = make([]domain.Outcome, len(mk.Outcomes))
		for j, oc := range mk.Outcomes {
			switch {
			case ext.HomeTeam != "" && strings.EqualFold(oc.Name, ext.HomeTeam):
				oc.Name = ev.HomeTeam
			case ext.AwayTeam != "" && strings.EqualFold(oc.Name, ext.AwayTeam):
				oc.Name = ev.AwayTeam
			}
			m.Outcomes[j] = oc
		}
		out.Markets[i] = m
	}
	return out
}
