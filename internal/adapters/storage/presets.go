package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/google/uuid"
)

// presetConfig is the JSON document stored in presets.config.
type presetConfig struct {
	Sports     []string `json:"sports,omitempty"`
	Bookmakers []string `json:"bookmakers,omitempty"`
	Leagues    []string `json:"leagues,omitempty"`
	Markets    []string `json:"markets,omitempty"`
	Selections []string `json:"selections,omitempty"`

	MinEdge        *float64 `json:"min_edge,omitempty"`
	MaxEdge        *float64 `json:"max_edge,omitempty"`
	MinOdds        *float64 `json:"min_odds,omitempty"`
	MaxOdds        *float64 `json:"max_odds,omitempty"`
	MinProbability *float64 `json:"min_probability,omitempty"`
	MaxProbability *float64 `json:"max_probability,omitempty"`

	IsLive           bool `json:"is_live,omitempty"`
	IgnoreBenchmarks bool `json:"ignore_benchmarks,omitempty"`
	HoursBeforeMin   *int `json:"hours_before_min,omitempty"`
	HoursBeforeMax   *int `json:"hours_before_max,omitempty"`

	StakingStrategy  string   `json:"staking_strategy,omitempty"`
	DefaultStake     float64  `json:"default_stake,omitempty"`
	PercentRisk      float64  `json:"percent_risk,omitempty"`
	KellyMultiplier  float64  `json:"kelly_multiplier,omitempty"`
	MaxStake         *float64 `json:"max_stake,omitempty"`
	Simulate         bool     `json:"simulate,omitempty"`
	SimulateBankroll *float64 `json:"simulate_bankroll,omitempty"`

	AfterTradeAction string             `json:"after_trade_action,omitempty"`
	OtherConfig      domain.OtherConfig `json:"other_config"`
}

func toPresetConfig(p domain.Preset) presetConfig {
	return presetConfig{
		Sports: p.Sports, Bookmakers: p.Bookmakers, Leagues: p.Leagues,
		Markets: p.Markets, Selections: p.Selections,
		MinEdge: p.MinEdge, MaxEdge: p.MaxEdge,
		MinOdds: p.MinOdds, MaxOdds: p.MaxOdds,
		MinProbability: p.MinProbability, MaxProbability: p.MaxProbability,
		IsLive: p.IsLive, IgnoreBenchmarks: p.IgnoreBenchmarks,
		HoursBeforeMin: p.HoursBeforeMin, HoursBeforeMax: p.HoursBeforeMax,
		StakingStrategy: string(p.StakingStrategy), DefaultStake: p.DefaultStake,
		PercentRisk: p.PercentRisk, KellyMultiplier: p.KellyMultiplier,
		MaxStake: p.MaxStake, Simulate: p.Simulate, SimulateBankroll: p.SimulateBankroll,
		AfterTradeAction: string(p.AfterTradeAction),
		OtherConfig:      p.OtherConfig,
	}
}

func (c presetConfig) apply(p *domain.Preset) {
	p.Sports, p.Bookmakers, p.Leagues = c.Sports, c.Bookmakers, c.Leagues
	p.Markets, p.Selections = c.Markets, c.Selections
	p.MinEdge, p.MaxEdge = c.MinEdge, c.MaxEdge
	p.MinOdds, p.MaxOdds = c.MinOdds, c.MaxOdds
	p.MinProbability, p.MaxProbability = c.MinProbability, c.MaxProbability
	p.IsLive, p.IgnoreBenchmarks = c.IsLive, c.IgnoreBenchmarks
	p.HoursBeforeMin, p.HoursBeforeMax = c.HoursBeforeMin, c.HoursBeforeMax
	p.StakingStrategy = domain.StakeStrategy(c.StakingStrategy)
	p.DefaultStake, p.PercentRisk, p.KellyMultiplier = c.DefaultStake, c.PercentRisk, c.KellyMultiplier
	p.MaxStake, p.Simulate, p.SimulateBankroll = c.MaxStake, c.Simulate, c.SimulateBankroll
	p.AfterTradeAction = domain.AfterTradeAction(c.AfterTradeAction)
	p.OtherConfig = c.OtherConfig
}

const presetColumns = `id, name, active, auto_trade, config, last_sync_at`

func scanPreset(row scanner) (domain.Preset, error) {
	var (
		p                 domain.Preset
		active, autoTrade int
		raw               string
		lastSync          sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &active, &autoTrade, &raw, &lastSync); err != nil {
		return domain.Preset{}, err
	}
	var cfg presetConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.Preset{}, fmt.Errorf("decode config of %s: %w", p.ID, err)
	}
	cfg.apply(&p)
	p.Active = active == 1
	p.AutoTrade = autoTrade == 1
	p.LastSyncAt = timePtr(lastSync)
	return p, nil
}

// SavePreset inserts or replaces a preset. An empty ID gets a new uuid.
func (s *Store) SavePreset(ctx context.Context, p domain.Preset) (domain.Preset, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	raw, err := json.Marshal(toPresetConfig(p))
	if err != nil {
		return domain.Preset{}, fmt.Errorf("storage.SavePreset: encode config: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO presets (id, name, active, auto_trade, config, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name       = excluded.name,
			active     = excluded.active,
			auto_trade = excluded.auto_trade,
			config     = excluded.config`),
		p.ID, p.Name, boolToInt(p.Active), boolToInt(p.AutoTrade), string(raw), nullTime(p.LastSyncAt),
	); err != nil {
		return domain.Preset{}, fmt.Errorf("storage.SavePreset: %s: %w", p.ID, err)
	}
	return p, nil
}

// Preset returns the preset with the given id.
func (s *Store) Preset(ctx context.Context, id string) (domain.Preset, error) {
	p, err := scanPreset(s.db.QueryRowContext(ctx, s.q(`SELECT `+presetColumns+` FROM presets WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preset{}, fmt.Errorf("storage.Preset: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Preset{}, fmt.Errorf("storage.Preset: %s: %w", id, err)
	}
	return p, nil
}

// ActivePresets lists active presets by name.
func (s *Store) ActivePresets(ctx context.Context) ([]domain.Preset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+presetColumns+` FROM presets WHERE active = 1 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ActivePresets: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ActivePresets: scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPresetSynced records the time of the preset's last live sync. This is
// the only preset field the engine writes.
func (s *Store) MarkPresetSynced(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, s.q(`UPDATE presets SET last_sync_at = ? WHERE id = ?`), at.UTC(), id); err != nil {
		return fmt.Errorf("storage.MarkPresetSynced: %s: %w", id, err)
	}
	return nil
}

// HiddenItems returns every hidden item of the preset, expired ones included;
// callers filter with domain.NewHiddenSet.
func (s *Store) HiddenItems(ctx context.Context, presetID string) ([]domain.HiddenItem, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, preset_id, event_id, market_key, selection, expiry_at
		FROM hidden_items WHERE preset_id = ?`), presetID)
	if err != nil {
		return nil, fmt.Errorf("storage.HiddenItems: query: %w", err)
	}
	defer rows.Close()

	var out []domain.HiddenItem
	for rows.Next() {
		var (
			h      domain.HiddenItem
			expiry sql.NullTime
		)
		if err := rows.Scan(&h.ID, &h.PresetID, &h.EventID, &h.MarketKey, &h.Selection, &expiry); err != nil {
			return nil, fmt.Errorf("storage.HiddenItems: scan row: %w", err)
		}
		if expiry.Valid {
			h.ExpiryAt = expiry.Time.UTC()
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AddHiddenItem stores a hidden item, assigning an id when empty.
func (s *Store) AddHiddenItem(ctx context.Context, item domain.HiddenItem) (domain.HiddenItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO hidden_items (id, preset_id, event_id, market_key, selection, expiry_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		item.ID, item.PresetID, item.EventID, item.MarketKey, item.Selection, nullTimeVal(item.ExpiryAt),
	); err != nil {
		return domain.HiddenItem{}, fmt.Errorf("storage.AddHiddenItem: %w", err)
	}
	return item, nil
}

// PruneExpiredHidden deletes hidden items that expired at or before now.
func (s *Store) PruneExpiredHidden(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM hidden_items WHERE expiry_at IS NOT NULL AND expiry_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage.PruneExpiredHidden: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
