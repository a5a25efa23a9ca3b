package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y además imprime los resultados del scanner.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	table bool
	now   func() time.Time
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return NewConsoleWriter(os.Stdout, table)
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Send imprime una línea por notificación.
func (c *Console) Send(_ context.Context, kind string, payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] %s\n", c.now().Format("15:04:05"), formatLine(kind, payload))
}

// PrintOpportunities imprime las oportunidades de un preset, compactas o en tabla.
func (c *Console) PrintOpportunities(preset domain.Preset, opps []domain.Opportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().Format("15:04:05")
	if len(opps) == 0 {
		fmt.Fprintf(c.out, "[%s] %s: no opportunities found\n", now, preset.Name)
		return
	}

	if !c.table {
		c.printCompact(now, preset, opps)
		return
	}

	fmt.Fprintf(c.out, "\n[%s] %s: %d opportunities\n", now, preset.Name, len(opps))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Start", "Event", "Bookmaker", "Market", "Selection", "Price", "Fair", "Edge", "Bet")
	for i, o := range opps {
		bet := ""
		if o.HasBet {
			bet = "yes"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			o.Event.CommenceTime.Local().Format("01-02 15:04"),
			truncate(o.Event.Name(), 32),
			o.Bookmaker.Key,
			marketLabel(o),
			o.Odds.NormalizedSelection,
			fmt.Sprintf("%.3f", o.Odds.Price),
			optional(o.Odds.TrueOdds, "%.3f"),
			optional(o.Edge, "%+.2f%%"),
			bet,
		)
	}
	table.Render()
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(now string, preset domain.Preset, opps []domain.Opportunity) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %d opps", now, preset.Name, len(opps))
	for i, o := range opps {
		if i >= 4 {
			fmt.Fprintf(&sb, " | +%d more", len(opps)-i)
			break
		}
		fmt.Fprintf(&sb, " | %s %s %s@%.2f %s",
			compactName(o.Event.Name(), 25), marketLabel(o), o.Odds.NormalizedSelection,
			o.Odds.Price, optional(o.Edge, "%+.1f%%"))
	}
	fmt.Fprintln(c.out, sb.String())
}

// PrintBets imprime una tabla de apuestas con su resultado.
func (c *Console) PrintBets(bets []domain.Bet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(bets) == 0 {
		fmt.Fprintln(c.out, "  (no bets)")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Placed", "Bookmaker", "Event", "Market", "Selection", "Price", "Stake", "Status", "Payout")
	var staked, returned float64
	for _, b := range bets {
		payout := "-"
		if b.Payout != nil {
			payout = fmt.Sprintf("%.2f", *b.Payout)
			returned += *b.Payout
		}
		staked += b.Stake
		table.Append(
			b.PlacedAt.Local().Format("01-02 15:04"),
			b.BookmakerKey,
			truncate(b.EventSnapshot.HomeTeam+" vs "+b.EventSnapshot.AwayTeam, 32),
			b.MarketKey,
			b.Selection,
			fmt.Sprintf("%.3f", b.Price),
			fmt.Sprintf("%.2f", b.Stake),
			string(b.Status),
			payout,
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "  Staked: %.2f | Returned: %.2f\n", staked, returned)
}

func marketLabel(o domain.Opportunity) string {
	if o.Odds.Point == nil {
		return o.Market.Key
	}
	return fmt.Sprintf("%s %g", o.Market.Key, *o.Odds.Point)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// compactName acorta por palabras para la vista compacta.
func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := strings.LastIndex(s[:maxLen], " ")
	if cut <= 0 {
		return truncate(s, maxLen)
	}
	return s[:cut] + "..."
}
