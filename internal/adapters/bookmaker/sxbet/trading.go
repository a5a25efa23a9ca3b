package sxbet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Trade statuses reported by /trades.
const (
	tradeSuccess = "SUCCESS"
	tradeFailed  = "FAILED"
)

type fillRequest struct {
	Market                   string `json:"market"`
	BaseToken                string `json:"baseToken"`
	IsTakerBettingOutcomeOne bool   `json:"isTakerBettingOutcomeOne"`
	StakeWei                 string `json:"stakeWei"`
	DesiredOdds              string `json:"desiredOdds"`
	OddsSlippage             int64  `json:"oddsSlippage"`
	Taker                    string `json:"taker"`
	TakerSig                 string `json:"takerSig"`
	FillSalt                 string `json:"fillSalt"`
}

type fillResponse struct {
	Status string `json:"status"`
	Data   struct {
		FillHash      string `json:"fillHash"`
		IsPartialFill bool   `json:"isPartialFill"`
	} `json:"data"`
}

type tradesResponse struct {
	Data struct {
		Trades []trade `json:"trades"`
	} `json:"data"`
}

type trade struct {
	FillHash          string `json:"fillHash"`
	MarketHash        string `json:"marketHash"`
	Stake             string `json:"stake"`
	BettingOutcomeOne bool   `json:"bettingOutcomeOne"`
	TradeStatus       string `json:"tradeStatus"`
	Settled           bool   `json:"settled"`
	Outcome           int    `json:"outcome"` // 0 void, 1 outcome one, 2 outcome two
}

// PlaceBet fills the best maker orders for the bet's outcome. It needs a
// wallet (extra.private_key); without one placement is not supported.
func (a *Adapter) PlaceBet(ctx context.Context, bet domain.Bet) (domain.PlaceResult, error) {
	if a.wallet == nil {
		return domain.PlaceResult{Status: domain.BetError, Message: "sxbet: order signing not configured"}, bookmaker.ErrNotSupported
	}
	odds := bet.OddsSnapshot
	if odds.MarketSID == "" || (odds.SID != "outcomeOne" && odds.SID != "outcomeTwo") {
		return domain.PlaceResult{Status: domain.BetError, Message: "sxbet: bet has no market hash or outcome"},
			fmt.Errorf("sxbet.PlaceBet: bet %s: missing market hash or outcome", bet.ID)
	}

	f := fill{
		StakeWei:                 toWei(bet.Stake, a.decimals).String(),
		MarketHash:               odds.MarketSID,
		BaseToken:                a.baseToken,
		DesiredOdds:              desiredOdds(bet.Price),
		OddsSlippage:             a.slippage,
		IsTakerBettingOutcomeOne: odds.SID == "outcomeOne",
		FillSalt:                 a.salt(),
		Beneficiary:              common.Address{},
	}
	sig, err := a.wallet.sign(f)
	if err != nil {
		return domain.PlaceResult{Status: domain.BetError, Message: err.Error()}, err
	}

	var resp fillResponse
	err = a.client.Post(ctx, "/orders/fill/v2", fillRequest{
		Market:                   f.MarketHash,
		BaseToken:                f.BaseToken,
		IsTakerBettingOutcomeOne: f.IsTakerBettingOutcomeOne,
		StakeWei:                 f.StakeWei,
		DesiredOdds:              f.DesiredOdds,
		OddsSlippage:             f.OddsSlippage,
		Taker:                    a.wallet.Address(),
		TakerSig:                 sig,
		FillSalt:                 f.FillSalt.String(),
	}, &resp)
	if err != nil {
		var se *bookmaker.StatusError
		if errors.As(err, &se) && se.Code < 500 {
			// exchange rejection: the bet fails, the session does not
			return domain.PlaceResult{Status: domain.BetFailed, Message: se.Body}, nil
		}
		return domain.PlaceResult{Status: domain.BetError, Message: err.Error()}, fmt.Errorf("sxbet.PlaceBet: %w", err)
	}
	if resp.Data.FillHash == "" {
		return domain.PlaceResult{Status: domain.BetFailed, Message: "sxbet: no fill hash returned"}, nil
	}

	slog.Info("sxbet: fill submitted", "bet", bet.ID, "fill_hash", resp.Data.FillHash, "partial", resp.Data.IsPartialFill)
	return domain.PlaceResult{
		Success: true,
		Status:  domain.BetPending,
		BetID:   resp.Data.FillHash,
		Message: fmt.Sprintf("fill submitted (partial=%t)", resp.Data.IsPartialFill),
	}, nil
}

// AccountBalance reports a zero balance; the wallet address identifies the
// account once one is configured.
func (a *Adapter) AccountBalance(context.Context) (domain.Balance, error) {
	account := a.cfg.Extra["exchange_address"]
	if a.wallet != nil {
		account = a.wallet.Address()
	}
	if account == "" {
		account = "not_configured"
	}
	return domain.Balance{Currency: a.currency, AccountID: account}, nil
}

func (a *Adapter) trades(ctx context.Context, fillHash string) ([]trade, error) {
	if a.wallet == nil || !strings.HasPrefix(fillHash, "0x") {
		return nil, bookmaker.ErrNotSupported
	}
	var tr tradesResponse
	if err := a.client.Get(ctx, "/trades", url.Values{
		"bettor":    {a.wallet.Address()},
		"fillHash":  {fillHash},
		"baseToken": {a.baseToken},
	}, &tr); err != nil {
		return nil, err
	}
	return tr.Data.Trades, nil
}

// OrderStatus maps the trades of a fill: any successful trade opens the
// bet, only failed trades fail it, nothing yet keeps it pending.
func (a *Adapter) OrderStatus(ctx context.Context, externalID string) (domain.OrderStatus, error) {
	trades, err := a.trades(ctx, externalID)
	if err != nil {
		return domain.OrderStatus{}, err
	}
	out := domain.OrderStatus{ExternalID: externalID, Status: domain.BetPending}
	failed := 0
	for _, t := range trades {
		switch t.TradeStatus {
		case tradeSuccess:
			out.Status = domain.BetOpen
			out.Matched += fromWei(t.Stake, a.decimals)
		case tradeFailed:
			failed++
		}
	}
	if out.Status == domain.BetPending && failed > 0 && failed == len(trades) {
		out.Status = domain.BetFailed
	}
	return out, nil
}

// BetSettlement reads the result of the fill's trades. An unsettled fill
// reports the bet's current status.
func (a *Adapter) BetSettlement(ctx context.Context, bet domain.Bet) (domain.Settlement, error) {
	trades, err := a.trades(ctx, bet.ExternalID)
	if err != nil {
		return domain.Settlement{}, err
	}
	for _, t := range trades {
		if t.TradeStatus != tradeSuccess || !t.Settled {
			continue
		}
		status := domain.BetLost
		switch {
		case t.Outcome == 0:
			status = domain.BetVoid
		case (t.Outcome == 1) == t.BettingOutcomeOne:
			status = domain.BetWon
		}
		return domain.DefaultSettlement(bet, status)
	}
	return domain.Settlement{Status: bet.Status}, nil
}

func (a *Adapter) EventResults(context.Context, []string) ([]domain.EventResult, error) {
	return nil, bookmaker.ErrNotSupported
}

// fromWei converts base units back to token units.
func fromWei(s string, decimals int) float64 {
	v, ok := new(big.Float).SetString(s)
	if !ok {
		return 0
	}
	v.Quo(v, new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)))
	f, _ := v.Float64()
	return f
}

// parseSlippage reads extra.odds_slippage, a percentage in [0, 100].
func parseSlippage(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("sxbet: invalid odds_slippage %q", s)
	}
	return v, nil
}
