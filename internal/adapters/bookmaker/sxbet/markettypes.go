package sxbet

import (
	"slices"
	"strings"
)

type marketType struct {
	key   string
	lines bool
}

// marketTypes maps SX.Bet market type ids onto internal market keys.
var marketTypes = map[int]marketType{
	// game lines
	1:    {"h2h", false},
	52:   {"h2h", false},
	88:   {"h2h", false},
	226:  {"h2h", false},
	3:    {"spreads", true},
	201:  {"spreads", true},
	342:  {"spreads", true},
	2:    {"totals", true},
	835:  {"totals", true},
	28:   {"totals", true},
	29:   {"totals", true},
	166:  {"totals", true},
	1536: {"totals", true},
	274:  {"outrights", false},

	// periods
	202: {"h2h_p1", false},
	203: {"h2h_p2", false},
	204: {"h2h_p3", false},
	205: {"h2h_p4", false},
	63:  {"h2h_h1", false},
	53:  {"spreads_h1", true},
	64:  {"spreads_p1", true},
	65:  {"spreads_p2", true},
	66:  {"spreads_p3", true},
	77:  {"totals_h1", true},
	21:  {"totals_p1", true},
	45:  {"totals_p2", true},
	46:  {"totals_p3", true},

	// sets and innings
	866:  {"spreads_sets", true},
	165:  {"totals_sets", true},
	281:  {"spreads_f5", true},
	1618: {"h2h_f5", false},
	236:  {"totals_f5", true},
}

const (
	typeOneXTwo  = 1
	typeTwoWay   = 52
	drawNoBetKey = "dnb"
)

// marketKey returns the internal key of an SX.Bet market type. Unknown types
// fall back on the outcome name; "" means the market is skipped.
func marketKey(typ int, outcomeOneName string) string {
	if mt, ok := marketTypes[typ]; ok {
		return mt.key
	}
	lower := strings.ToLower(outcomeOneName)
	switch {
	case strings.Contains(lower, "over") || strings.Contains(lower, "under"):
		return "totals"
	case strings.ContainsAny(outcomeOneName, "+-"):
		return "spreads"
	}
	return ""
}

func hasLines(typ int) bool {
	return marketTypes[typ].lines
}

func marketAllowed(key string, allowed []string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, key)
}
