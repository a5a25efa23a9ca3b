package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// ScanQuery bounds the rows the scanner joins.
type ScanQuery struct {
	CommenceFrom  time.Time // inclusive; zero means unbounded
	CommenceTo    time.Time // inclusive; zero means unbounded
	BookmakerKeys []string  // empty means every bookmaker
	APIOnly       bool
}

// OddsRow is an odds row with the keys of its market and event.
type OddsRow struct {
	Odds      domain.Odds
	EventID   string
	MarketKey string
}

// BookmakerEvent is an event a bookmaker has odds for.
type BookmakerEvent struct {
	Ref          domain.EventRef
	LeagueKey    string
	CommenceTime time.Time
}

// OddsStore reads and writes normalized odds.
type OddsStore interface {
	// ScanRows returns the odds x market x event x bookmaker x sport x league
	// join for active events inside the query window.
	ScanRows(ctx context.Context, q ScanQuery) ([]domain.Opportunity, error)

	// MarketOdds returns every odds row of markets whose event starts after since.
	MarketOdds(ctx context.Context, since time.Time) ([]domain.Odds, error)

	// UpdateDerived writes implied probability, true odds and margin.
	UpdateDerived(ctx context.Context, odds []domain.Odds) error

	// BookmakerOdds returns the bookmaker's rows for the given events.
	BookmakerOdds(ctx context.Context, bookmakerKey string, eventIDs []string) ([]OddsRow, error)

	// BookmakerEvents lists events the bookmaker has odds for starting after since.
	BookmakerEvents(ctx context.Context, bookmakerKey string, since time.Time) ([]BookmakerEvent, error)

	// UpdatePrices writes refreshed prices and identifiers in one transaction.
	UpdatePrices(ctx context.Context, odds []domain.Odds) error

	// UpsertEventOdds writes one bookmaker's markets for an internal event.
	UpsertEventOdds(ctx context.Context, event domain.Event, bk domain.BookmakerOdds) (int, error)

	// LeagueEvents lists active events of a league.
	LeagueEvents(ctx context.Context, leagueKey string) ([]domain.Event, error)

	// SelectionResult returns the recorded result of a selection, if any.
	SelectionResult(ctx context.Context, eventID, marketKey, normalizedSelection string) (domain.BetStatus, bool, error)

	// SetSelectionResult records a final result on the selection's rows.
	SetSelectionResult(ctx context.Context, r domain.EventResult) error
}

// PresetStore reads presets and their hidden items.
type PresetStore interface {
	Preset(ctx context.Context, id string) (domain.Preset, error)
	ActivePresets(ctx context.Context) ([]domain.Preset, error)
	HiddenItems(ctx context.Context, presetID string) ([]domain.HiddenItem, error)
	AddHiddenItem(ctx context.Context, item domain.HiddenItem) (domain.HiddenItem, error)
	PruneExpiredHidden(ctx context.Context, now time.Time) (int, error)
	// MarkPresetSynced is the only preset write the engine performs.
	MarkPresetSynced(ctx context.Context, id string, at time.Time) error
}

// BookmakerStore reads bookmakers and mutates balances.
type BookmakerStore interface {
	Bookmaker(ctx context.Context, key string) (domain.Bookmaker, error)
	ActiveBookmakers(ctx context.Context, modelType domain.ModelType) ([]domain.Bookmaker, error)
	// AdjustBalance adds delta to the balance inside a transaction and
	// returns the new balance.
	AdjustBalance(ctx context.Context, key string, delta float64) (float64, error)
}

// BetStore persists bets.
type BetStore interface {
	// RecordBet inserts the bet and debits debit from the bookmaker balance
	// in the same transaction.
	RecordBet(ctx context.Context, bet domain.Bet, debit float64) error
	Bet(ctx context.Context, id string) (domain.Bet, error)
	BetsByStatus(ctx context.Context, bookmakerKey string, statuses ...domain.BetStatus) ([]domain.Bet, error)
	// BetRowKeys returns domain.RowKey of every bet on the given events.
	BetRowKeys(ctx context.Context, eventIDs []string) (map[string]bool, error)
	// LastBetAt returns the placement time of the bookmaker's latest bet whose
	// status counts for the bet delay.
	LastBetAt(ctx context.Context, bookmakerKey string) (time.Time, bool, error)
	// SettleBet stores the result and credits the balance in one transaction.
	SettleBet(ctx context.Context, betID string, s domain.Settlement, credit float64, at time.Time) error
	// ReopenBet moves a settled bet back to open and debits reversal.
	ReopenBet(ctx context.Context, betID string, reversal float64) error
	// UpdateBetStatus applies a non-terminal transition such as pending -> open.
	UpdateBetStatus(ctx context.Context, betID string, status domain.BetStatus, externalID string) error
}

// MappingStore persists external id mappings.
type MappingStore interface {
	Mapping(ctx context.Context, source, typ, externalID string) (domain.Mapping, bool, error)
	MappingByInternal(ctx context.Context, source, typ, internalKey string) (domain.Mapping, bool, error)
	SaveMapping(ctx context.Context, m domain.Mapping) error
	// MappingCandidates lists internal entities of typ inside group.
	MappingCandidates(ctx context.Context, typ, group string) ([]domain.Candidate, error)
}
