package sxbet_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker"
	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker/sxbet"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

const walletKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func walletAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.HexToECDSA(walletKey)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func newTradingAdapter(t *testing.T, baseURL string) *sxbet.Adapter {
	t.Helper()
	a, err := sxbet.New(domain.Bookmaker{
		Key: "sxbet", ModelType: domain.ModelAPI,
		Config: domain.BookmakerConfig{
			BaseURL: baseURL,
			Extra:   map[string]string{"private_key": walletKey, "odds_slippage": "2"},
		},
	}, bookmaker.Deps{Mapper: bookmaker.NewMapper(&mappings{})})
	require.NoError(t, err)
	return a.WithSalt(func() *big.Int { return big.NewInt(7) })
}

func sxBet() domain.Bet {
	return domain.Bet{
		ID:           "b1",
		BookmakerKey: "sxbet",
		Price:        2.0,
		Stake:        10,
		Status:       domain.BetOpen,
		ExternalID:   "0xfill",
		OddsSnapshot: domain.OddsSnapshot{MarketSID: "0xh2h", SID: "outcomeOne", Price: 2.0},
	}
}

func TestPlaceBet_SubmitsSignedFill(t *testing.T) {
	addr := walletAddress(t)
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/fill/v2", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","data":{"fillHash":"0xfill","isPartialFill":true}}`))
	}))
	defer srv.Close()

	a := newTradingAdapter(t, srv.URL)
	assert.True(t, a.HasCredentials())

	res, err := a.PlaceBet(context.Background(), sxBet())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.BetPending, res.Status)
	assert.Equal(t, "0xfill", res.BetID)

	assert.Equal(t, "0xh2h", got["market"])
	assert.Equal(t, "10000000", got["stakeWei"])
	assert.Equal(t, "50000000000000000000", got["desiredOdds"])
	assert.Equal(t, true, got["isTakerBettingOutcomeOne"])
	assert.Equal(t, float64(2), got["oddsSlippage"])
	assert.Equal(t, "7", got["fillSalt"])
	assert.Equal(t, addr, got["taker"])
	assert.Len(t, got["takerSig"], 132)
}

func TestPlaceBet_RejectedFillFailsTheBet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"failure","errorCode":"INSUFFICIENT_SPACE"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	res, err := newTradingAdapter(t, srv.URL).PlaceBet(context.Background(), sxBet())
	require.NoError(t, err, "an exchange rejection must not trip the breaker")
	assert.False(t, res.Success)
	assert.Equal(t, domain.BetFailed, res.Status)
	assert.Contains(t, res.Message, "INSUFFICIENT_SPACE")
}

func TestPlaceBet_NeedsMarketHashAndOutcome(t *testing.T) {
	a := newTradingAdapter(t, "http://127.0.0.1:0")
	bet := sxBet()
	bet.OddsSnapshot.SID = ""

	res, err := a.PlaceBet(context.Background(), bet)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.BetError, res.Status)
}

func tradesServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	addr := walletAddress(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, addr, r.URL.Query().Get("bettor"))
		assert.Equal(t, "0xfill", r.URL.Query().Get("fillHash"))
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  domain.BetStatus
		matched float64
	}{
		{"no trades yet", `{"data":{"trades":[]}}`, domain.BetPending, 0},
		{"filled", `{"data":{"trades":[
			{"fillHash":"0xfill","stake":"6000000","tradeStatus":"SUCCESS"},
			{"fillHash":"0xfill","stake":"4000000","tradeStatus":"SUCCESS"}]}}`, domain.BetOpen, 10},
		{"all failed", `{"data":{"trades":[{"fillHash":"0xfill","stake":"10000000","tradeStatus":"FAILED"}]}}`, domain.BetFailed, 0},
		{"still pending", `{"data":{"trades":[
			{"fillHash":"0xfill","stake":"10000000","tradeStatus":"PENDING"},
			{"fillHash":"0xfill","stake":"10000000","tradeStatus":"FAILED"}]}}`, domain.BetPending, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTradingAdapter(t, tradesServer(t, tt.body).URL)
			st, err := a.OrderStatus(context.Background(), "0xfill")
			require.NoError(t, err)
			assert.Equal(t, "0xfill", st.ExternalID)
			assert.Equal(t, tt.status, st.Status)
			assert.InDelta(t, tt.matched, st.Matched, 1e-9)
		})
	}
}

func TestBetSettlement(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status domain.BetStatus
		payout float64
	}{
		{"won", `{"data":{"trades":[{"tradeStatus":"SUCCESS","settled":true,"outcome":1,"bettingOutcomeOne":true}]}}`, domain.BetWon, 20},
		{"lost", `{"data":{"trades":[{"tradeStatus":"SUCCESS","settled":true,"outcome":2,"bettingOutcomeOne":true}]}}`, domain.BetLost, -10},
		{"void", `{"data":{"trades":[{"tradeStatus":"SUCCESS","settled":true,"outcome":0,"bettingOutcomeOne":true}]}}`, domain.BetVoid, 10},
		{"unsettled", `{"data":{"trades":[{"tradeStatus":"SUCCESS","settled":false}]}}`, domain.BetOpen, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTradingAdapter(t, tradesServer(t, tt.body).URL)
			st, err := a.BetSettlement(context.Background(), sxBet())
			require.NoError(t, err)
			assert.Equal(t, tt.status, st.Status)
			assert.InDelta(t, tt.payout, st.Payout, 1e-9)
		})
	}
}

func TestSimulatedBetsAreNotLookedUp(t *testing.T) {
	a := newTradingAdapter(t, "http://127.0.0.1:0")
	bet := sxBet()
	bet.ExternalID = "SIM-1767225600"

	_, err := a.BetSettlement(context.Background(), bet)
	assert.ErrorIs(t, err, bookmaker.ErrNotSupported)
	_, err = a.OrderStatus(context.Background(), bet.ExternalID)
	assert.ErrorIs(t, err, bookmaker.ErrNotSupported)
}

func TestAccountBalance_WalletAddress(t *testing.T) {
	a := newTradingAdapter(t, "http://127.0.0.1:0")
	bal, err := a.AccountBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, walletAddress(t), bal.AccountID)
}

func TestNew_InvalidWalletConfig(t *testing.T) {
	for _, extra := range []map[string]string{
		{"private_key": "zz"},
		{"private_key": walletKey, "chain_id": "abc"},
		{"odds_slippage": "101"},
	} {
		_, err := sxbet.New(domain.Bookmaker{
			Key:    "sxbet",
			Config: domain.BookmakerConfig{Extra: extra},
		}, bookmaker.Deps{Mapper: bookmaker.NewMapper(&mappings{})})
		assert.Error(t, err, "%v", extra)
	}
}
