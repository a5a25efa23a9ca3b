package autotrade_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/application/autotrade"
	"github.com/alejandrodnm/valuebot/internal/application/fairodds"
	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
	"github.com/alejandrodnm/valuebot/internal/testutil"
)

type env struct {
	db       *storage.Store
	sess     *testutil.FakeSession
	notifier *testutil.Notifier
	exec     *autotrade.Executor
	event    domain.Event
}

// newEnv seeds the benchmark at 2.00/2.00 and the exchange at 2.20/1.80: the
// exchange home price carries a 10% edge.
func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewStore(t)
	testutil.SeedCatalog(t, db)
	ev := testutil.Event("ev1", "Arsenal", "Chelsea", time.Now().Add(6*time.Hour))
	testutil.SeedH2H(t, db, ev, testutil.Benchmark, 2.0, 2.0, "")
	testutil.SeedH2H(t, db, ev, testutil.Exchange, 2.2, 1.8, "sx-1")
	_, err := fairodds.New(db, testutil.Benchmark).RecomputeAll(context.Background())
	require.NoError(t, err)

	sess := testutil.NewFakeSession(testutil.Exchange)
	n := &testutil.Notifier{}
	exec := autotrade.New(scanner.New(db, db, db), db, db, db, testutil.Sessions{testutil.Exchange: sess}, n)
	return &env{db: db, sess: sess, notifier: n, exec: exec, event: ev}
}

func (e *env) savePreset(t *testing.T, p domain.Preset) domain.Preset {
	t.Helper()
	p.Active = true
	p.AutoTrade = true
	if p.MinEdge == nil {
		p.MinEdge = domain.Float(2)
	}
	if p.StakingStrategy == "" {
		p.StakingStrategy = domain.StakeFixed
		p.DefaultStake = 10
	}
	saved, err := e.db.SavePreset(context.Background(), p)
	require.NoError(t, err)
	return saved
}

func (e *env) balance(t *testing.T) float64 {
	t.Helper()
	bk, err := e.db.Bookmaker(context.Background(), testutil.Exchange)
	require.NoError(t, err)
	return bk.Balance
}

func (e *env) bets(t *testing.T, statuses ...domain.BetStatus) []domain.Bet {
	t.Helper()
	out, err := e.db.BetsByStatus(context.Background(), testutil.Exchange, statuses...)
	require.NoError(t, err)
	return out
}

func TestRun_PlacesValueBet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.savePreset(t, domain.Preset{Name: "value", AfterTradeAction: domain.AfterTradeRemoveTrade})

	sum, err := e.exec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, autotrade.Summary{Presets: 1, Placed: 1}, sum)

	placed := e.sess.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, 10.0, placed[0].Stake)
	assert.Equal(t, 2.2, placed[0].Price)
	assert.Equal(t, "home", placed[0].Selection)

	bets := e.bets(t, domain.BetPlaced)
	require.Len(t, bets, 1)
	b := bets[0]
	assert.Equal(t, p.ID, b.PresetID)
	assert.Equal(t, "ext-1", b.ExternalID)
	assert.Equal(t, "sx-1", b.OddsSnapshot.EventSID)
	require.NotNil(t, b.OddsSnapshot.Edge)
	assert.InDelta(t, 10.0, *b.OddsSnapshot.Edge, 1e-6)
	assert.Equal(t, "Arsenal", b.EventSnapshot.HomeTeam)

	assert.Equal(t, 90.0, e.balance(t))

	hidden, err := e.db.HiddenItems(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	assert.Equal(t, "h2h", hidden[0].MarketKey)
	assert.Equal(t, "home", hidden[0].Selection)
	assert.WithinDuration(t, time.Now().Add(domain.HiddenItemTTL), hidden[0].ExpiryAt, time.Minute)

	assert.Equal(t, []string{ports.KindNewBet}, e.notifier.Kinds())
}

func TestRun_OneBetPerBookmakerAcrossPresets(t *testing.T) {
	e := newEnv(t)
	e.savePreset(t, domain.Preset{Name: "a"})
	e.savePreset(t, domain.Preset{Name: "b", MinEdge: domain.Float(1)})

	sum, err := e.exec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Presets)
	assert.Equal(t, 1, sum.Placed)
	assert.Len(t, e.sess.Placed(), 1)
}

func TestRun_Simulate(t *testing.T) {
	e := newEnv(t)
	e.savePreset(t, domain.Preset{
		Name: "sim", Simulate: true, SimulateBankroll: domain.Float(1000),
		StakingStrategy: domain.StakeRisk, PercentRisk: 2,
	})

	sum, err := e.exec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Placed)
	assert.Empty(t, e.sess.Placed(), "simulate never calls the bookmaker")

	bets := e.bets(t, domain.BetPlaced)
	require.Len(t, bets, 1)
	assert.True(t, strings.HasPrefix(bets[0].ExternalID, "SIM-"))
	assert.Equal(t, 20.0, bets[0].Stake, "sized on the simulate bankroll")
	assert.Equal(t, 100.0, e.balance(t), "simulate never debits")
}

func TestRun_SimulateWithoutBankrollIsSkipped(t *testing.T) {
	e := newEnv(t)
	e.savePreset(t, domain.Preset{Name: "sim", Simulate: true})

	sum, err := e.exec.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Presets)
	assert.Empty(t, e.bets(t, domain.BetPlaced))
}

func TestRun_PlacementFailure(t *testing.T) {
	tests := []struct {
		name    string
		result  domain.PlaceResult
		err     error
		message string
	}{
		{"rejected", domain.PlaceResult{Success: false, Message: "odds changed"}, nil, "odds changed"},
		{"adapter error", domain.PlaceResult{}, errors.New("timeout"), "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.sess.PlaceResult = tt.result
			e.sess.PlaceErr = tt.err
			e.savePreset(t, domain.Preset{Name: "value"})

			sum, err := e.exec.Run(context.Background())
			require.NoError(t, err)
			assert.Zero(t, sum.Placed)
			assert.Equal(t, 1, sum.Failed)

			failed := e.bets(t, domain.BetFailed)
			require.Len(t, failed, 1)
			assert.Contains(t, failed[0].Message, tt.message)
			assert.Equal(t, 100.0, e.balance(t))
			assert.Equal(t, []string{ports.KindBetFailed}, e.notifier.Kinds())
		})
	}
}

func TestRun_FailedPlacementDoesNotBlockLaterRuns(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.savePreset(t, domain.Preset{Name: "value", AfterTradeAction: domain.AfterTradeKeep})

	e.sess.PlaceErr = errors.New("exchange timeout")
	sum, err := e.exec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, autotrade.Summary{Presets: 1, Failed: 1}, sum)

	e.sess.PlaceErr = nil
	sum, err = e.exec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, autotrade.Summary{Presets: 1, Placed: 1}, sum)
	assert.Len(t, e.sess.Placed(), 2)
	assert.Len(t, e.bets(t, domain.BetPlaced), 1)
}

func TestRun_KeepAllowsAnotherBetOnTheSameRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.savePreset(t, domain.Preset{Name: "value", AfterTradeAction: domain.AfterTradeKeep})

	for i := 0; i < 2; i++ {
		sum, err := e.exec.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Placed, "run %d", i)
	}
	assert.Len(t, e.bets(t, domain.BetPlaced), 2)
	assert.Equal(t, 80.0, e.balance(t))
}

func TestRun_Gates(t *testing.T) {
	tests := []struct {
		name   string
		preset domain.Preset
		setup  func(t *testing.T, e *env)
	}{
		{
			name:   "no credentials",
			preset: domain.Preset{},
			setup:  func(_ *testing.T, e *env) { e.sess.NoCredentials = true },
		},
		{
			name:   "adapter cannot trade",
			preset: domain.Preset{},
			setup:  func(_ *testing.T, e *env) { e.sess.Simple = true },
		},
		{
			name:   "stake below minimum",
			preset: domain.Preset{StakingStrategy: domain.StakeRisk, PercentRisk: 0.05},
		},
		{
			name:   "insufficient balance",
			preset: domain.Preset{StakingStrategy: domain.StakeFixed, DefaultStake: 500},
		},
		{
			name:   "bet delay",
			preset: domain.Preset{},
			setup: func(t *testing.T, e *env) {
				ctx := context.Background()
				require.NoError(t, e.db.UpsertBookmaker(ctx, domain.Bookmaker{
					Key: testutil.Exchange, Title: "SX Bet", ModelType: domain.ModelAPI, Active: true,
					Config: domain.BookmakerConfig{APIKey: "k", StartingBalance: 100, BetDelaySeconds: 600},
				}))
				require.NoError(t, e.db.RecordBet(ctx, domain.Bet{
					EventID: "elsewhere", BookmakerKey: testutil.Exchange, MarketKey: "h2h",
					Selection: "home", Price: 2, Stake: 1, Status: domain.BetOpen, PlacedAt: time.Now().Add(-time.Minute),
				}, 0))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.setup != nil {
				tt.setup(t, e)
			}
			e.savePreset(t, tt.preset)

			sum, err := e.exec.Run(context.Background())
			require.NoError(t, err)
			assert.Zero(t, sum.Placed)
			assert.Zero(t, sum.Failed)
			assert.Empty(t, e.sess.Placed())
		})
	}
}

func TestRun_ElapsedDelayAllowsBet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.db.UpsertBookmaker(ctx, domain.Bookmaker{
		Key: testutil.Exchange, Title: "SX Bet", ModelType: domain.ModelAPI, Active: true,
		Config: domain.BookmakerConfig{APIKey: "k", StartingBalance: 100, BetDelaySeconds: 60},
	}))
	require.NoError(t, e.db.RecordBet(ctx, domain.Bet{
		EventID: "elsewhere", BookmakerKey: testutil.Exchange, MarketKey: "h2h",
		Selection: "home", Price: 2, Stake: 1, Status: domain.BetPlaced, PlacedAt: time.Now().Add(-time.Hour),
	}, 0))
	e.savePreset(t, domain.Preset{})

	sum, err := e.exec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Placed)
}

func TestRun_NotificationToggle(t *testing.T) {
	e := newEnv(t)
	e.savePreset(t, domain.Preset{OtherConfig: domain.OtherConfig{NotificationNewBet: "false"}})

	sum, err := e.exec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Placed)
	assert.Empty(t, e.notifier.Kinds())
}

func TestRun_IgnoresManualPresets(t *testing.T) {
	e := newEnv(t)
	_, err := e.db.SavePreset(context.Background(), domain.Preset{Name: "manual", Active: true, MinEdge: domain.Float(2)})
	require.NoError(t, err)

	sum, err := e.exec.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Presets)
}

func TestRun_KellyUsesFairProbability(t *testing.T) {
	e := newEnv(t)
	e.savePreset(t, domain.Preset{StakingStrategy: domain.StakeKelly, KellyMultiplier: 1})

	_, err := e.exec.Run(context.Background())
	require.NoError(t, err)

	// p = 1/2.0, b = 1.2: f = (1.2*0.5 - 0.5)/1.2 on a balance of 100
	placed := e.sess.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, 8.33, placed[0].Stake)
}
