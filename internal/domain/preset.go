package domain

import (
	"strings"
	"time"
)

// AfterTradeAction decides what gets hidden from a preset once a bet is placed.
type AfterTradeAction string

const (
	AfterTradeKeep        AfterTradeAction = "keep"
	AfterTradeRemoveMatch AfterTradeAction = "remove_match"
	AfterTradeRemoveLine  AfterTradeAction = "remove_line"
	AfterTradeRemoveTrade AfterTradeAction = "remove_trade"
)

// HiddenItemTTL is how long an after-trade hide lasts.
const HiddenItemTTL = 24 * time.Hour

// Preset is a saved set of scan and staking criteria. The core treats it as
// read-only.
type Preset struct {
	ID         string
	Name       string
	Active     bool
	AutoTrade  bool
	Sports     []string
	Bookmakers []string
	Leagues    []string
	Markets    []string
	Selections []string // normalized selections

	MinEdge        *float64 // percent
	MaxEdge        *float64 // percent
	MinOdds        *float64
	MaxOdds        *float64
	MinProbability *float64 // percent
	MaxProbability *float64 // percent

	IsLive           bool
	IgnoreBenchmarks bool
	HoursBeforeMin   *int
	HoursBeforeMax   *int

	StakingStrategy  StakeStrategy
	DefaultStake     float64
	PercentRisk      float64
	KellyMultiplier  float64
	MaxStake         *float64
	Simulate         bool
	SimulateBankroll *float64

	AfterTradeAction AfterTradeAction
	OtherConfig      OtherConfig
	LastSyncAt       *time.Time
}

// HasEdgeFilter reports whether the preset filters on edge.
func (p Preset) HasEdgeFilter() bool {
	return p.MinEdge != nil || p.MaxEdge != nil
}

// OtherConfig holds the free-form preset flags.
type OtherConfig struct {
	SortBy             string `json:"sort_by,omitempty"`    // edge | start_time | price | implied_probability | home
	SortOrder          string `json:"sort_order,omitempty"` // asc | desc
	GroupBy            string `json:"group_by,omitempty"`   // none | sport | league | event | bookmaker
	NotificationNewBet string `json:"notification_new_bet,omitempty"`
}

// Sort returns the configured sort key and direction, defaulting to edge
// descending.
func (c OtherConfig) Sort() (by string, desc bool) {
	by = c.SortBy
	switch by {
	case "edge", "start_time", "price", "implied_probability", "home":
	default:
		by = "edge"
	}
	return by, !strings.EqualFold(c.SortOrder, "asc")
}

// NotifyNewBet reports whether new-bet notifications are enabled. On by
// default.
func (c OtherConfig) NotifyNewBet() bool {
	return !strings.EqualFold(c.NotificationNewBet, "false")
}

// HiddenItem suppresses opportunities of a preset. An empty MarketKey hides
// the whole event; an empty Selection hides the whole market.
type HiddenItem struct {
	ID        string
	PresetID  string
	EventID   string
	MarketKey string
	Selection string // normalized selection
	ExpiryAt  time.Time
}

// Matches reports whether the item suppresses the given row.
func (h HiddenItem) Matches(eventID, marketKey, normalizedSelection string) bool {
	if h.EventID != eventID {
		return false
	}
	if h.MarketKey == "" {
		return true
	}
	if h.MarketKey != marketKey {
		return false
	}
	return h.Selection == "" || h.Selection == normalizedSelection
}

// Expired reports whether the item no longer applies at now.
func (h HiddenItem) Expired(now time.Time) bool {
	return !h.ExpiryAt.IsZero() && !h.ExpiryAt.After(now)
}

// HiddenSet indexes hidden items by event for quick hierarchical lookups.
type HiddenSet map[string][]HiddenItem

// NewHiddenSet drops expired items and indexes the rest.
func NewHiddenSet(items []HiddenItem, now time.Time) HiddenSet {
	set := make(HiddenSet)
	for _, it := range items {
		if it.Expired(now) {
			continue
		}
		set[it.EventID] = append(set[it.EventID], it)
	}
	return set
}

// Match returns the first item suppressing the row, if any.
func (s HiddenSet) Match(eventID, marketKey, normalizedSelection string) (HiddenItem, bool) {
	for _, it := range s[eventID] {
		if it.Matches(eventID, marketKey, normalizedSelection) {
			return it, true
		}
	}
	return HiddenItem{}, false
}

// HideFor builds the hidden item an after-trade action asks for. ok is false
// for keep (or an unknown action).
func HideFor(action AfterTradeAction, presetID, eventID, marketKey, selection string, now time.Time) (HiddenItem, bool) {
	item := HiddenItem{PresetID: presetID, EventID: eventID, ExpiryAt: now.Add(HiddenItemTTL)}
	switch action {
	case AfterTradeRemoveMatch:
	case AfterTradeRemoveLine:
		item.MarketKey = marketKey
	case AfterTradeRemoveTrade:
		item.MarketKey = marketKey
		item.Selection = selection
	default:
		return HiddenItem{}, false
	}
	return item, true
}
