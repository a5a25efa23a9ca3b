// Package testutil holds fixtures shared by the application tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

const (
	Benchmark = "pinnacle"
	Exchange  = "sxbet"
	League    = "soccer_epl"
)

// NewStore opens an in-memory store closed at the end of the test.
func NewStore(t testing.TB) *storage.Store {
	t.Helper()
	db, err := storage.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedCatalog writes the soccer sport, the EPL league and two bookmakers:
// the simple benchmark and an API exchange with a starting balance of 100.
func SeedCatalog(t testing.TB, db *storage.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertSport(ctx, domain.Sport{Key: "soccer", Title: "Soccer", Group: "Soccer"}))
	require.NoError(t, db.UpsertLeague(ctx, domain.League{Key: League, SportKey: "soccer", Title: "EPL", Group: "Soccer"}))
	require.NoError(t, db.UpsertBookmaker(ctx, domain.Bookmaker{
		Key: Benchmark, Title: "Pinnacle", ModelType: domain.ModelSimple, Active: true,
	}))
	require.NoError(t, db.UpsertBookmaker(ctx, domain.Bookmaker{
		Key: Exchange, Title: "SX Bet", ModelType: domain.ModelAPI, Active: true,
		Config: domain.BookmakerConfig{APIKey: "k", StartingBalance: 100},
	}))
}

// Event builds an active EPL event.
func Event(id, home, away string, commence time.Time) domain.Event {
	return domain.Event{
		ID: id, SportKey: "soccer", LeagueKey: League,
		HomeTeam: home, AwayTeam: away, CommenceTime: commence.UTC(), Active: true,
	}
}

// SeedH2H writes a two-way h2h market for one bookmaker. Outcomes carry the
// exchange-style sids "outcomeOne"/"outcomeTwo" and eventSID when given.
func SeedH2H(t testing.TB, db *storage.Store, ev domain.Event, bookmakerKey string, home, away float64, eventSID string) {
	t.Helper()
	_, err := db.UpsertEventOdds(context.Background(), ev, domain.BookmakerOdds{
		Key: bookmakerKey, SID: eventSID,
		Markets: []domain.MarketOdds{{Key: "h2h", SID: "mk-" + ev.ID, Outcomes: []domain.Outcome{
			{Name: ev.HomeTeam, Price: home, SID: "outcomeOne"},
			{Name: ev.AwayTeam, Price: away, SID: "outcomeTwo"},
		}}},
	})
	require.NoError(t, err)
}
