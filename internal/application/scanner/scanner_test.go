package scanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/application/fairodds"
	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/testutil"
)

// setup seeds one upcoming event: the benchmark at 2.0/2.0 (fair 0.5 each)
// and the exchange at 2.2/1.8, so exchange home carries a 10% edge.
func setup(t *testing.T) (*storage.Store, *scanner.Scanner, domain.Event) {
	t.Helper()
	db := testutil.NewStore(t)
	testutil.SeedCatalog(t, db)

	ev := testutil.Event("ev1", "Arsenal", "Chelsea", time.Now().Add(5*time.Hour))
	testutil.SeedH2H(t, db, ev, testutil.Benchmark, 2.0, 2.0, "")
	testutil.SeedH2H(t, db, ev, testutil.Exchange, 2.2, 1.8, "L1")

	_, err := fairodds.New(db, testutil.Benchmark).RecomputeAll(context.Background())
	require.NoError(t, err)
	return db, scanner.New(db, db, db), ev
}

func intPtr(v int) *int { return &v }

func TestScan_EdgeScenario(t *testing.T) {
	_, s, ev := setup(t)

	opps, err := s.Scan(context.Background(), domain.Preset{ID: "p1", MinEdge: domain.Float(2)}, scanner.Options{})
	require.NoError(t, err)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, testutil.Exchange, o.Bookmaker.Key)
	assert.Equal(t, "home", o.Odds.NormalizedSelection)
	assert.Equal(t, ev.ID, o.Event.ID)
	require.NotNil(t, o.Edge)
	assert.InDelta(t, 10.0, *o.Edge, 1e-6)
	assert.False(t, o.HasBet)
}

func TestScan_RequiresFairPriceUnlessIgnoringBenchmarks(t *testing.T) {
	db, s, _ := setup(t)
	ctx := context.Background()

	// a market only the exchange quotes has no true odds
	lone := testutil.Event("ev2", "Leeds", "Wolves", time.Now().Add(6*time.Hour))
	testutil.SeedH2H(t, db, lone, testutil.Exchange, 3.0, 1.4, "L1")
	_, err := fairodds.New(db, testutil.Benchmark).RecomputeAll(ctx)
	require.NoError(t, err)

	opps, err := s.Scan(ctx, domain.Preset{ID: "p1", Bookmakers: []string{testutil.Exchange}}, scanner.Options{})
	require.NoError(t, err)
	for _, o := range opps {
		assert.NotEqual(t, "ev2", o.Event.ID)
	}
	assert.Len(t, opps, 2)

	opps, err = s.Scan(ctx, domain.Preset{ID: "p1", Bookmakers: []string{testutil.Exchange}, IgnoreBenchmarks: true}, scanner.Options{})
	require.NoError(t, err)
	assert.Len(t, opps, 4)

	// an edge filter still needs a fair price
	opps, err = s.Scan(ctx, domain.Preset{ID: "p1", IgnoreBenchmarks: true, MinEdge: domain.Float(-50)}, scanner.Options{})
	require.NoError(t, err)
	for _, o := range opps {
		assert.NotNil(t, o.Edge)
	}
}

func TestScan_AllowListsAndRanges(t *testing.T) {
	_, s, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		preset domain.Preset
		want   int
	}{
		{"no criteria", domain.Preset{}, 4},
		{"bookmaker", domain.Preset{Bookmakers: []string{testutil.Benchmark}}, 2},
		{"selection", domain.Preset{Selections: []string{"away"}}, 2},
		{"market miss", domain.Preset{Markets: []string{"totals"}}, 0},
		{"league miss", domain.Preset{Leagues: []string{"soccer_laliga"}}, 0},
		{"sport", domain.Preset{Sports: []string{"soccer"}}, 4},
		{"max odds", domain.Preset{MaxOdds: domain.Float(1.9)}, 1},
		{"min odds", domain.Preset{MinOdds: domain.Float(2.1)}, 1},
		{"probability pct", domain.Preset{MinProbability: domain.Float(50), MaxProbability: domain.Float(50)}, 4},
		{"probability miss", domain.Preset{MinProbability: domain.Float(60)}, 0},
		{"max edge", domain.Preset{MaxEdge: domain.Float(0)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opps, err := s.Scan(ctx, tt.preset, scanner.Options{})
			require.NoError(t, err)
			assert.Len(t, opps, tt.want)
		})
	}
}

func TestScan_HoursWindow(t *testing.T) {
	_, s, _ := setup(t)
	ctx := context.Background()

	// event is 5h out
	opps, err := s.Scan(ctx, domain.Preset{HoursBeforeMin: intPtr(4), HoursBeforeMax: intPtr(6)}, scanner.Options{})
	require.NoError(t, err)
	assert.Len(t, opps, 4)

	opps, err = s.Scan(ctx, domain.Preset{HoursBeforeMin: intPtr(6)}, scanner.Options{})
	require.NoError(t, err)
	assert.Empty(t, opps)

	opps, err = s.Scan(ctx, domain.Preset{HoursBeforeMax: intPtr(4)}, scanner.Options{})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestScan_LiveWindow(t *testing.T) {
	db, s, _ := setup(t)
	ctx := context.Background()

	started := testutil.Event("live1", "Spurs", "Fulham", time.Now().Add(-30*time.Minute))
	testutil.SeedH2H(t, db, started, testutil.Benchmark, 1.5, 3.0, "")
	old := testutil.Event("old1", "Everton", "Brentford", time.Now().Add(-3*time.Hour))
	testutil.SeedH2H(t, db, old, testutil.Benchmark, 1.5, 3.0, "")

	opps, err := s.Scan(ctx, domain.Preset{IsLive: true, IgnoreBenchmarks: true}, scanner.Options{})
	require.NoError(t, err)
	require.Len(t, opps, 2)
	for _, o := range opps {
		assert.Equal(t, "live1", o.Event.ID)
	}

	opps, err = s.Scan(ctx, domain.Preset{IgnoreBenchmarks: true}, scanner.Options{})
	require.NoError(t, err)
	for _, o := range opps {
		assert.Equal(t, "ev1", o.Event.ID, "pre-game never returns started events")
	}
}

func TestScan_HiddenHierarchy(t *testing.T) {
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		item domain.HiddenItem
		want int
	}{
		{"whole event", domain.HiddenItem{EventID: "ev1"}, 0},
		{"market", domain.HiddenItem{EventID: "ev1", MarketKey: "h2h"}, 0},
		{"selection", domain.HiddenItem{EventID: "ev1", MarketKey: "h2h", Selection: "home"}, 2},
		{"other market", domain.HiddenItem{EventID: "ev1", MarketKey: "totals"}, 4},
		{"expired", domain.HiddenItem{EventID: "ev1", ExpiryAt: time.Now().Add(-time.Minute)}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, s, _ := setup(t)
			item := tt.item
			item.PresetID = "p1"
			if item.ExpiryAt.IsZero() {
				item.ExpiryAt = expiry
			}
			_, err := db.AddHiddenItem(ctx, item)
			require.NoError(t, err)

			opps, err := s.Scan(ctx, domain.Preset{ID: "p1"}, scanner.Options{})
			require.NoError(t, err)
			assert.Len(t, opps, tt.want)

			// other presets are unaffected
			opps, err = s.Scan(ctx, domain.Preset{ID: "p2"}, scanner.Options{})
			require.NoError(t, err)
			assert.Len(t, opps, 4)
		})
	}
}

func TestScan_MarksExistingBets(t *testing.T) {
	db, s, ev := setup(t)
	ctx := context.Background()

	require.NoError(t, db.RecordBet(ctx, domain.Bet{
		PresetID: "p1", EventID: ev.ID, BookmakerKey: testutil.Exchange,
		MarketKey: "h2h", Selection: "home", Price: 2.2, Stake: 5, Status: domain.BetPlaced,
	}, 0))

	opps, err := s.Scan(ctx, domain.Preset{ID: "p1"}, scanner.Options{})
	require.NoError(t, err)
	var marked []string
	for _, o := range opps {
		if o.HasBet {
			marked = append(marked, o.RowKey())
		}
	}
	assert.Equal(t, []string{domain.RowKey(ev.ID, testutil.Exchange, "h2h", "home")}, marked)
}

func TestScan_BookmakerOption(t *testing.T) {
	_, s, _ := setup(t)

	opps, err := s.Scan(context.Background(), domain.Preset{}, scanner.Options{BookmakerKeys: []string{testutil.Exchange}})
	require.NoError(t, err)
	require.Len(t, opps, 2)
	for _, o := range opps {
		assert.Equal(t, testutil.Exchange, o.Bookmaker.Key)
	}
}

func TestScan_SortedByEdgeDescending(t *testing.T) {
	_, s, _ := setup(t)

	opps, err := s.Scan(context.Background(), domain.Preset{}, scanner.Options{})
	require.NoError(t, err)
	require.Len(t, opps, 4)
	assert.InDelta(t, 10.0, *opps[0].Edge, 1e-6)
	assert.InDelta(t, -10.0, *opps[3].Edge, 1e-6)
}

func TestScanHidden(t *testing.T) {
	db, s, ev := setup(t)
	ctx := context.Background()

	none, err := s.ScanHidden(ctx, domain.Preset{ID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, none)

	item, err := db.AddHiddenItem(ctx, domain.HiddenItem{
		PresetID: "p1", EventID: ev.ID, MarketKey: "h2h", Selection: "home",
		ExpiryAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	hidden, err := s.ScanHidden(ctx, domain.Preset{ID: "p1", MinEdge: domain.Float(50)})
	require.NoError(t, err)
	require.Len(t, hidden, 2, "price filters do not apply to hidden rows")
	for _, o := range hidden {
		assert.Equal(t, item.ID, o.HiddenItemID)
		assert.Equal(t, "home", o.Odds.NormalizedSelection)
		assert.NotNil(t, o.Edge)
	}

	hidden, err = s.ScanHidden(ctx, domain.Preset{ID: "p1", Bookmakers: []string{testutil.Benchmark}})
	require.NoError(t, err)
	assert.Len(t, hidden, 1)
}

func TestScan_UsesClock(t *testing.T) {
	_, s, _ := setup(t)

	// ten hours later the event has started and left the live window too
	later := time.Now().Add(10 * time.Hour)
	opps, err := s.WithClock(func() time.Time { return later }).Scan(context.Background(), domain.Preset{}, scanner.Options{})
	require.NoError(t, err)
	assert.Empty(t, opps)
}
