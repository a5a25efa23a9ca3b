// Package sxbet is the SX.Bet plug-in. Odds come from the public API; bets
// are placed as EIP-712 signed fills when a wallet key is configured
// (extra.private_key).
package sxbet

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Name is the registry name of the plug-in.
const Name = "sxbet"

const (
	defaultBaseURL = "https://api.sx.bet"
	testnetBaseURL = "https://api-toronto.sx.bet"

	// percentageOdds are maker implied probabilities scaled by 1e20.
	oddsScale = 1e20
)

// Base tokens on SX Network.
var baseTokens = map[string]string{
	"USDC": "0x6629Ce1Cf35Cc1329ebB4F63202F3f197b3F050B",
	"WSX":  "0x3E96B0a25d51e3Cc89C557f152797c33B839968f",
}

var tokenDecimals = map[string]int{
	"USDC": 6,
	"WSX":  18,
}

func init() {
	bookmaker.Register(Name, func(bk domain.Bookmaker, deps bookmaker.Deps) (ports.Adapter, error) {
		return New(bk, deps)
	})
}

// Adapter talks to the SX.Bet REST API.
type Adapter struct {
	key       string
	title     string
	cfg       domain.BookmakerConfig
	client    *bookmaker.JSONClient
	mapper    *bookmaker.Mapper
	baseToken string
	currency  string
	decimals  int

	wallet   *wallet // nil: placement not supported
	slippage int64
	salt     func() *big.Int
}

var _ ports.Adapter = (*Adapter)(nil)

// New builds the adapter. League ids are resolved through deps.Mapper.
func New(bk domain.Bookmaker, deps bookmaker.Deps) (*Adapter, error) {
	if deps.Mapper == nil {
		return nil, fmt.Errorf("sxbet.New: a mapper is required")
	}
	base := bk.Config.BaseURL
	if base == "" {
		base = defaultBaseURL
		if bk.Config.Extra["use_testnet"] == "true" {
			base = testnetBaseURL
		}
	}
	currency := strings.ToUpper(bk.Config.Currency)
	token, ok := baseTokens[currency]
	if !ok {
		currency, token = "USDC", baseTokens["USDC"]
	}
	title := bk.Title
	if title == "" {
		title = "SX.Bet"
	}
	a := &Adapter{
		key:       bk.Key,
		title:     title,
		cfg:       bk.Config,
		client:    bookmaker.NewJSONClient(deps.HTTP, base),
		mapper:    deps.Mapper,
		baseToken: token,
		currency:  currency,
		decimals:  tokenDecimals[currency],
		salt:      randomSalt,
	}

	if pk := bk.Config.Extra["private_key"]; pk != "" {
		chainID, err := parseChainID(bk.Config.Extra["chain_id"])
		if err != nil {
			return nil, fmt.Errorf("sxbet.New: %w", err)
		}
		w, err := newWallet(pk, chainID)
		if err != nil {
			return nil, fmt.Errorf("sxbet.New: %w", err)
		}
		a.wallet = w
	}
	slippage, err := parseSlippage(bk.Config.Extra["odds_slippage"])
	if err != nil {
		return nil, fmt.Errorf("sxbet.New: %w", err)
	}
	a.slippage = slippage
	return a, nil
}

// WithSalt replaces the fill salt source.
func (a *Adapter) WithSalt(salt func() *big.Int) *Adapter {
	a.salt = salt
	return a
}

func (a *Adapter) Tier() ports.Tier { return ports.TierAPI }

func (a *Adapter) HasCredentials() bool { return a.wallet != nil || a.cfg.HasCredentials() }

// Authorize is a no-op: the odds API is public.
func (a *Adapter) Authorize(context.Context) error { return nil }

// --- wire types ---

type marketsResponse struct {
	Data struct {
		Markets []market `json:"markets"`
	} `json:"data"`
}

type market struct {
	MarketHash     string   `json:"marketHash"`
	Type           int      `json:"type"`
	EventID        string   `json:"sportXeventId"`
	GameTime       int64    `json:"gameTime"`
	TeamOneName    string   `json:"teamOneName"`
	TeamTwoName    string   `json:"teamTwoName"`
	OutcomeOneName string   `json:"outcomeOneName"`
	OutcomeTwoName string   `json:"outcomeTwoName"`
	Line           *float64 `json:"line"`
	SportLabel     string   `json:"sportLabel"`
}

type bestOddsResponse struct {
	Data struct {
		BestOdds []bestOdds `json:"bestOdds"`
	} `json:"data"`
}

type bestOdds struct {
	MarketHash string      `json:"marketHash"`
	OutcomeOne outcomeOdds `json:"outcomeOne"`
	OutcomeTwo outcomeOdds `json:"outcomeTwo"`
}

type outcomeOdds struct {
	PercentageOdds pctOdds `json:"percentageOdds"`
}

// pctOdds accepts the scaled probability as a JSON string, number or null.
type pctOdds float64

func (p *pctOdds) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("percentageOdds %q: %w", b, err)
	}
	*p = pctOdds(v)
	return nil
}

// takerPrice converts a maker's scaled probability into the decimal price
// offered to the taker of the opposite outcome. ok is false for unusable
// quotes.
func takerPrice(makerPct float64) (float64, bool) {
	p := makerPct / oddsScale
	if p <= 0 || p >= 1 {
		return 0, false
	}
	price := math.Round(1/(1-p)*1000) / 1000
	return price, price > 1
}

// FetchLeagueOdds returns the league's main lines keyed by SX event ids.
// A league without a mapped SX id yields nothing.
func (a *Adapter) FetchLeagueOdds(ctx context.Context, leagueKey string, allowedMarkets []string) ([]domain.EventOdds, error) {
	leagueID, ok, err := a.mapper.ExternalID(ctx, a.key, domain.MappingLeague, leagueKey)
	if err != nil {
		return nil, fmt.Errorf("sxbet.FetchLeagueOdds: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var mr marketsResponse
	if err := a.client.Get(ctx, "/markets/active", url.Values{
		"leagueId":     {leagueID},
		"onlyMainLine": {"true"},
	}, &mr); err != nil {
		return nil, fmt.Errorf("sxbet.FetchLeagueOdds: markets: %w", err)
	}
	if len(mr.Data.Markets) == 0 {
		return nil, nil
	}
	markets := make(map[string]market, len(mr.Data.Markets))
	for _, m := range mr.Data.Markets {
		markets[m.MarketHash] = m
	}

	var or bestOddsResponse
	if err := a.client.Get(ctx, "/orders/odds/best", url.Values{
		"leagueIds": {leagueID},
		"baseToken": {a.baseToken},
	}, &or); err != nil {
		return nil, fmt.Errorf("sxbet.FetchLeagueOdds: best odds: %w", err)
	}

	return a.buildTree(leagueKey, markets, or.Data.BestOdds, allowedMarkets), nil
}

func (a *Adapter) buildTree(leagueKey string, markets map[string]market, quotes []bestOdds, allowed []string) []domain.EventOdds {
	// A 1X2 market and a two-way market both map to h2h; when an event has
	// both, the two-way one is draw-no-bet.
	typesByEvent := make(map[string]map[int]bool)
	for _, q := range quotes {
		m, ok := markets[q.MarketHash]
		if !ok || m.EventID == "" {
			continue
		}
		if typesByEvent[m.EventID] == nil {
			typesByEvent[m.EventID] = make(map[int]bool)
		}
		typesByEvent[m.EventID][m.Type] = true
	}

	var (
		order  []string
		events = make(map[string]*domain.EventOdds)
	)
	for _, q := range quotes {
		m, ok := markets[q.MarketHash]
		if !ok || m.EventID == "" {
			continue
		}

		key := marketKey(m.Type, m.OutcomeOneName)
		if m.Type == typeTwoWay && typesByEvent[m.EventID][typeOneXTwo] {
			key = drawNoBetKey
		}
		if key == "" || !marketAllowed(key, allowed) {
			continue
		}

		var point *float64
		if hasLines(m.Type) {
			point = m.Line
		}

		// Each maker quote is taken by the opposite outcome.
		var outcomes []domain.Outcome
		if name := outcomeName(m.OutcomeTwoName); name != "" {
			if price, ok := takerPrice(float64(q.OutcomeOne.PercentageOdds)); ok {
				outcomes = append(outcomes, domain.Outcome{Name: name, Price: price, Point: point, SID: "outcomeTwo"})
			}
		}
		if name := outcomeName(m.OutcomeOneName); name != "" {
			if price, ok := takerPrice(float64(q.OutcomeTwo.PercentageOdds)); ok {
				outcomes = append(outcomes, domain.Outcome{Name: name, Price: price, Point: point, SID: "outcomeOne"})
			}
		}
		if len(outcomes) == 0 {
			continue
		}

		ev, ok := events[m.EventID]
		if !ok {
			ev = &domain.EventOdds{
				ID:           m.EventID,
				LeagueKey:    leagueKey,
				HomeTeam:     m.TeamOneName,
				AwayTeam:     m.TeamTwoName,
				CommenceTime: time.Unix(m.GameTime, 0).UTC(),
				Bookmakers:   []domain.BookmakerOdds{{Key: a.key, Title: a.title, SID: m.EventID}},
			}
			events[m.EventID] = ev
			order = append(order, m.EventID)
		}
		ev.Bookmakers[0].Markets = append(ev.Bookmakers[0].Markets, domain.MarketOdds{
			Key:      key,
			SID:      m.MarketHash,
			Outcomes: outcomes,
		})
	}

	out := make([]domain.EventOdds, 0, len(order))
	for _, id := range order {
		out = append(out, *events[id])
	}
	return out
}

// outcomeName maps "Tie" to draw and drops "Not ..." outcomes.
func outcomeName(name string) string {
	switch {
	case name == "Tie":
		return "draw"
	case strings.HasPrefix(name, "Not "):
		return ""
	}
	return name
}

// ObtainOdds refreshes the requested events. Events are matched through the
// SX event id recorded on their odds rows; events without one cannot be
// refreshed.
func (a *Adapter) ObtainOdds(ctx context.Context, leagueKey string, events []domain.EventRef, allowedMarkets []string) ([]domain.OddsUpdate, error) {
	byEventSID := make(map[string]string, len(events))
	for _, ev := range events {
		if ev.EventSID != "" {
			byEventSID[ev.EventSID] = ev.ID
		}
	}
	if len(byEventSID) == 0 {
		return nil, nil
	}

	tree, err := a.FetchLeagueOdds(ctx, leagueKey, allowedMarkets)
	if err != nil {
		return nil, err
	}

	var out []domain.OddsUpdate
	for _, ev := range tree {
		internalID, ok := byEventSID[ev.ID]
		if !ok {
			continue
		}
		for _, bk := range ev.Bookmakers {
			if bk.Key != a.key {
				continue
			}
			for _, mk := range bk.Markets {
				for _, o := range mk.Outcomes {
					out = append(out, domain.OddsUpdate{
						ExternalEventID: internalID,
						MarketKey:       mk.Key,
						Selection:       o.Name,
						Price:           o.Price,
						Point:           o.Point,
						BetLimit:        o.BetLimit,
						SID:             o.SID,
						MarketSID:       mk.SID,
						EventSID:        bk.SID,
					})
				}
			}
		}
	}
	return out, nil
}
