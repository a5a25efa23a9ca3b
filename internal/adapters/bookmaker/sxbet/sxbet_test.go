package sxbet_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker"
	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker/sxbet"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mappings struct {
	byInternal map[string]string
}

func (m *mappings) Mapping(context.Context, string, string, string) (domain.Mapping, bool, error) {
	return domain.Mapping{}, false, nil
}

func (m *mappings) MappingByInternal(_ context.Context, source, typ, internalKey string) (domain.Mapping, bool, error) {
	id, ok := m.byInternal[source+"|"+typ+"|"+internalKey]
	if !ok {
		return domain.Mapping{}, false, nil
	}
	return domain.Mapping{Source: source, Type: typ, ExternalID: id, InternalKey: internalKey, Status: domain.MappingMapped}, true, nil
}

func (m *mappings) SaveMapping(context.Context, domain.Mapping) error { return nil }

func (m *mappings) MappingCandidates(context.Context, string, string) ([]domain.Candidate, error) {
	return nil, nil
}

const marketsJSON = `{"status":"success","data":{"markets":[
 {"marketHash":"0xh2h","type":1,"sportXeventId":"L100","gameTime":1767225600,
  "teamOneName":"Arsenal","teamTwoName":"Chelsea","outcomeOneName":"Arsenal","outcomeTwoName":"Not Arsenal"},
 {"marketHash":"0xdnb","type":52,"sportXeventId":"L100","gameTime":1767225600,
  "teamOneName":"Arsenal","teamTwoName":"Chelsea","outcomeOneName":"Arsenal","outcomeTwoName":"Chelsea"},
 {"marketHash":"0xtot","type":2,"sportXeventId":"L100","gameTime":1767225600,"line":2.5,
  "teamOneName":"Arsenal","teamTwoName":"Chelsea","outcomeOneName":"Over 2.5","outcomeTwoName":"Under 2.5"},
 {"marketHash":"0xml","type":52,"sportXeventId":"L200","gameTime":1767232800,
  "teamOneName":"Lakers","teamTwoName":"Celtics","outcomeOneName":"Lakers","outcomeTwoName":"Tie"}
]}}`

const bestOddsJSON = `{"status":"success","data":{"bestOdds":[
 {"marketHash":"0xh2h","outcomeOne":{"percentageOdds":"50000000000000000000"},"outcomeTwo":{"percentageOdds":"60000000000000000000"}},
 {"marketHash":"0xdnb","outcomeOne":{"percentageOdds":"45000000000000000000"},"outcomeTwo":{"percentageOdds":55000000000000000000}},
 {"marketHash":"0xtot","outcomeOne":{"percentageOdds":"50000000000000000000"},"outcomeTwo":{"percentageOdds":null}},
 {"marketHash":"0xml","outcomeOne":{"percentageOdds":"40000000000000000000"},"outcomeTwo":{"percentageOdds":"100000000000000000000"}},
 {"marketHash":"0xunknown","outcomeOne":{"percentageOdds":"50000000000000000000"},"outcomeTwo":{"percentageOdds":"50000000000000000000"}}
]}}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/active":
			assert.Equal(t, "42", r.URL.Query().Get("leagueId"))
			assert.Equal(t, "true", r.URL.Query().Get("onlyMainLine"))
			w.Write([]byte(marketsJSON))
		case "/orders/odds/best":
			assert.Equal(t, "42", r.URL.Query().Get("leagueIds"))
			assert.Equal(t, "0x6629Ce1Cf35Cc1329ebB4F63202F3f197b3F050B", r.URL.Query().Get("baseToken"))
			w.Write([]byte(bestOddsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAdapter(t *testing.T, baseURL string) *sxbet.Adapter {
	t.Helper()
	store := &mappings{byInternal: map[string]string{"sxbet|league|soccer_epl": "42"}}
	a, err := sxbet.New(domain.Bookmaker{
		Key: "sxbet", ModelType: domain.ModelAPI,
		Config: domain.BookmakerConfig{BaseURL: baseURL},
	}, bookmaker.Deps{Mapper: bookmaker.NewMapper(store)})
	require.NoError(t, err)
	return a
}

func TestFetchLeagueOdds(t *testing.T) {
	srv := newServer(t)
	a := newAdapter(t, srv.URL)

	tree, err := a.FetchLeagueOdds(context.Background(), "soccer_epl", nil)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	ev := tree[0]
	assert.Equal(t, "L100", ev.ID)
	assert.Equal(t, "Arsenal", ev.HomeTeam)
	assert.Equal(t, int64(1767225600), ev.CommenceTime.Unix())
	require.Len(t, ev.Bookmakers, 1)
	bk := ev.Bookmakers[0]
	assert.Equal(t, "sxbet", bk.Key)
	assert.Equal(t, "L100", bk.SID)

	markets := make(map[string]domain.MarketOdds)
	for _, m := range bk.Markets {
		markets[m.Key] = m
	}
	require.Len(t, markets, 3)

	// "Not Arsenal" is dropped; Arsenal is priced off the outcomeTwo maker.
	h2h := markets["h2h"]
	assert.Equal(t, "0xh2h", h2h.SID)
	require.Len(t, h2h.Outcomes, 1)
	assert.Equal(t, "Arsenal", h2h.Outcomes[0].Name)
	assert.InDelta(t, 2.5, h2h.Outcomes[0].Price, 1e-9)
	assert.Equal(t, "outcomeOne", h2h.Outcomes[0].SID)
	assert.Nil(t, h2h.Outcomes[0].Point)

	// the two-way market next to a 1X2 is draw no bet
	dnb := markets["dnb"]
	require.Len(t, dnb.Outcomes, 2)
	assert.Equal(t, "Chelsea", dnb.Outcomes[0].Name)
	assert.InDelta(t, 1.818, dnb.Outcomes[0].Price, 1e-9)
	assert.Equal(t, "Arsenal", dnb.Outcomes[1].Name)
	assert.InDelta(t, 2.222, dnb.Outcomes[1].Price, 1e-9)

	totals := markets["totals"]
	require.Len(t, totals.Outcomes, 1)
	assert.Equal(t, "Under 2.5", totals.Outcomes[0].Name)
	assert.InDelta(t, 2.0, totals.Outcomes[0].Price, 1e-9)
	require.NotNil(t, totals.Outcomes[0].Point)
	assert.InDelta(t, 2.5, *totals.Outcomes[0].Point, 1e-9)

	// lone two-way market stays h2h, Tie becomes draw, a 100% maker quote
	// is unusable
	other := tree[1]
	require.Len(t, other.Bookmakers[0].Markets, 1)
	ml := other.Bookmakers[0].Markets[0]
	assert.Equal(t, "h2h", ml.Key)
	require.Len(t, ml.Outcomes, 1)
	assert.Equal(t, "draw", ml.Outcomes[0].Name)
	assert.InDelta(t, 1.667, ml.Outcomes[0].Price, 1e-9)
}

func TestFetchLeagueOdds_AllowedMarkets(t *testing.T) {
	srv := newServer(t)
	a := newAdapter(t, srv.URL)

	tree, err := a.FetchLeagueOdds(context.Background(), "soccer_epl", []string{"totals"})
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Bookmakers[0].Markets, 1)
	assert.Equal(t, "totals", tree[0].Bookmakers[0].Markets[0].Key)
}

func TestFetchLeagueOdds_UnmappedLeague(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()
	a := newAdapter(t, srv.URL)

	tree, err := a.FetchLeagueOdds(context.Background(), "basketball_nba", nil)
	require.NoError(t, err)
	assert.Empty(t, tree)
	assert.False(t, called)
}

func TestObtainOdds_MapsBackToInternalIDs(t *testing.T) {
	srv := newServer(t)
	a := newAdapter(t, srv.URL)

	updates, err := a.ObtainOdds(context.Background(), "soccer_epl", []domain.EventRef{
		{ID: "ev1", EventSID: "L100"},
		{ID: "ev9"},
	}, []string{"h2h", "dnb"})
	require.NoError(t, err)
	require.Len(t, updates, 3)
	for _, u := range updates {
		assert.Equal(t, "ev1", u.ExternalEventID)
		assert.Equal(t, "L100", u.EventSID)
		assert.NotEmpty(t, u.MarketSID)
	}
}

func TestObtainOdds_NoEventSIDs(t *testing.T) {
	a := newAdapter(t, "http://127.0.0.1:0")
	updates, err := a.ObtainOdds(context.Background(), "soccer_epl", []domain.EventRef{{ID: "ev1"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestUnsupportedOperations(t *testing.T) {
	a := newAdapter(t, "http://127.0.0.1:0")
	ctx := context.Background()

	res, err := a.PlaceBet(ctx, domain.Bet{})
	assert.True(t, errors.Is(err, bookmaker.ErrNotSupported))
	assert.False(t, res.Success)

	_, err = a.OrderStatus(ctx, "x")
	assert.ErrorIs(t, err, bookmaker.ErrNotSupported)
	_, err = a.BetSettlement(ctx, domain.Bet{})
	assert.ErrorIs(t, err, bookmaker.ErrNotSupported)

	bal, err := a.AccountBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDC", bal.Currency)
	assert.Zero(t, bal.Amount)
}

func TestRegisteredWithRegistry(t *testing.T) {
	_, ok := bookmaker.FactoryByName(sxbet.Name)
	assert.True(t, ok)
}
