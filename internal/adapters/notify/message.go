package notify

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alejandrodnm/valuebot/internal/ports"
)

var titles = map[string]string{
	ports.KindNewBet:      "NEW BET",
	ports.KindBetFailed:   "BET FAILED",
	ports.KindCircuitOpen: "CIRCUIT OPEN",
	ports.KindSettled:     "BET SETTLED",
}

func title(kind string) string {
	if t, ok := titles[kind]; ok {
		return t
	}
	return strings.ToUpper(kind)
}

// formatLine renders a notification on one line: "NEW BET bookmaker=x stake=10".
func formatLine(kind string, payload map[string]any) string {
	var sb strings.Builder
	sb.WriteString(title(kind))
	for _, k := range sortedKeys(payload) {
		fmt.Fprintf(&sb, " %s=%s", k, formatValue(payload[k]))
	}
	return sb.String()
}

// formatMessage renders a notification as a short multi-line message.
func formatMessage(kind string, payload map[string]any) string {
	var sb strings.Builder
	sb.WriteString(title(kind))
	for _, k := range sortedKeys(payload) {
		fmt.Fprintf(&sb, "\n%s: %s", k, formatValue(payload[k]))
	}
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", x)
	case *float64:
		if x == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
