package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/valuebot/internal/adapters/notify"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
	"github.com/stretchr/testify/assert"
)

func makeOpp(home, away string, price float64, edge *float64) domain.Opportunity {
	return domain.Opportunity{
		Event: domain.Event{
			ID: "ev1", HomeTeam: home, AwayTeam: away,
			CommenceTime: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
		},
		Market:    domain.Market{Key: "totals"},
		Bookmaker: domain.Bookmaker{Key: "sxbet"},
		Odds: domain.Odds{
			NormalizedSelection: "over", Price: price, Point: domain.Float(2.5),
			TrueOdds: domain.Float(1.9),
		},
		Edge: edge,
	}
}

func TestConsole_PrintOpportunities_Table(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	c.PrintOpportunities(domain.Preset{Name: "EPL value"}, []domain.Opportunity{
		makeOpp("Arsenal", "Chelsea", 2.1, domain.Float(10.53)),
		makeOpp("Liverpool", "Everton", 1.95, nil),
	})

	out := buf.String()
	assert.Contains(t, out, "EPL value: 2 opportunities")
	assert.Contains(t, out, "Arsenal vs Chelsea")
	assert.Contains(t, out, "totals 2.5")
	assert.Contains(t, out, "+10.53%")
	assert.Contains(t, out, "2.100")
}

func TestConsole_PrintOpportunities_Compact(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	var opps []domain.Opportunity
	for i := 0; i < 6; i++ {
		opps = append(opps, makeOpp("Borussia Monchengladbach", "Bayer Leverkusen", 2.1, domain.Float(3)))
	}
	c.PrintOpportunities(domain.Preset{Name: "Bundesliga"}, opps)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "+2 more")
	assert.Contains(t, out, "...")
}

func TestConsole_PrintOpportunities_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true).PrintOpportunities(domain.Preset{Name: "p"}, nil)
	assert.Contains(t, buf.String(), "no opportunities found")
}

func TestConsole_Send(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.Send(context.Background(), ports.KindNewBet, map[string]any{
		"bookmaker": "sxbet",
		"stake":     12.5,
		"price":     2.1,
	})
	assert.Contains(t, buf.String(), "NEW BET bookmaker=sxbet price=2.10 stake=12.50")
}

func TestConsole_PrintBets(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	payout := 21.0
	c.PrintBets([]domain.Bet{
		{BookmakerKey: "sxbet", MarketKey: "h2h", Selection: "home", Price: 2.1, Stake: 10, Status: domain.BetWon, Payout: &payout,
			EventSnapshot: domain.EventSnapshot{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}},
		{BookmakerKey: "sxbet", MarketKey: "h2h", Selection: "away", Price: 3.0, Stake: 5, Status: domain.BetOpen},
	})

	out := buf.String()
	assert.Contains(t, out, "Arsenal vs Chelsea")
	assert.Contains(t, out, "Staked: 15.00 | Returned: 21.00")
}

type sink struct{ kinds []string }

func (s *sink) Send(_ context.Context, kind string, _ map[string]any) { s.kinds = append(s.kinds, kind) }

func TestMulti(t *testing.T) {
	a, b := &sink{}, &sink{}
	notify.Multi{a, nil, b}.Send(context.Background(), ports.KindSettled, nil)
	assert.Equal(t, []string{ports.KindSettled}, a.kinds)
	assert.Equal(t, []string{ports.KindSettled}, b.kinds)
}
