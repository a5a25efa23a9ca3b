package livesync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/application/livesync"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

func oddsRow(id, market, sel, norm string, price float64, point *float64) ports.OddsRow {
	return ports.OddsRow{
		EventID:   "ev1",
		MarketKey: market,
		Odds:      domain.Odds{ID: id, Selection: sel, NormalizedSelection: norm, Price: price, Point: point},
	}
}

func TestMerge_PrefersMatchingPoint(t *testing.T) {
	rows := []ports.OddsRow{
		oddsRow("o1", "totals", "Over", "over", 1.9, domain.Float(2.5)),
		oddsRow("o2", "totals", "Over", "over", 2.3, domain.Float(3.5)),
	}
	updates := []domain.OddsUpdate{
		{ExternalEventID: "ev1", MarketKey: "totals", Selection: "over", Price: 2.4, Point: domain.Float(3.5)},
	}

	changed := livesync.Merge(rows, updates, nil)
	require.Len(t, changed, 1)
	assert.Equal(t, "o2", changed[0].ID)
	assert.Equal(t, 2.4, changed[0].Price)
}

func TestMerge_NewLineAmongSeveralIsDropped(t *testing.T) {
	rows := []ports.OddsRow{
		oddsRow("o1", "totals", "Over", "over", 1.9, domain.Float(2.5)),
		oddsRow("o2", "totals", "Over", "over", 2.3, domain.Float(3.5)),
	}
	updates := []domain.OddsUpdate{
		{ExternalEventID: "ev1", MarketKey: "totals", Selection: "over", Price: 1.6, Point: domain.Float(1.5)},
	}
	assert.Empty(t, livesync.Merge(rows, updates, nil))
}

func TestMerge_LoneLineFollowsTheMove(t *testing.T) {
	rows := []ports.OddsRow{oddsRow("o1", "spreads", "Arsenal", "home", 1.9, domain.Float(-1.5))}
	updates := []domain.OddsUpdate{
		{ExternalEventID: "ev1", MarketKey: "spreads", Selection: "Arsenal", Price: 2.05, Point: domain.Float(-1)},
	}

	changed := livesync.Merge(rows, updates, nil)
	require.Len(t, changed, 1)
	assert.Equal(t, "o1", changed[0].ID)
	assert.Equal(t, 2.05, changed[0].Price)
	require.NotNil(t, changed[0].Point)
	assert.Equal(t, -1.0, *changed[0].Point)
}

func TestMerge_NormalizesTeamNames(t *testing.T) {
	rows := []ports.OddsRow{oddsRow("o1", "h2h", "Arsenal FC", "home", 2.0, nil)}
	updates := []domain.OddsUpdate{
		{ExternalEventID: "ev1", MarketKey: "h2h", Selection: "Arsenal", Price: 2.1},
	}

	assert.Empty(t, livesync.Merge(rows, updates, nil))

	changed := livesync.Merge(rows, updates, map[string][2]string{"ev1": {"Arsenal", "Chelsea"}})
	require.Len(t, changed, 1)
	assert.Equal(t, 2.1, changed[0].Price)
}

func TestMerge_IgnoresUnusablePrices(t *testing.T) {
	rows := []ports.OddsRow{oddsRow("o1", "h2h", "draw", "draw", 3.2, nil)}
	updates := []domain.OddsUpdate{{ExternalEventID: "ev1", MarketKey: "h2h", Selection: "draw", Price: 0}}
	assert.Empty(t, livesync.Merge(rows, updates, nil))
}
