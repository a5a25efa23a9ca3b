package ports

import "context"

// Notification kinds.
const (
	KindNewBet      = "new_bet"
	KindBetFailed   = "bet_failed"
	KindCircuitOpen = "circuit_open"
	KindSettled     = "bet_settled"
)

// Notifier is a fire-and-forget sink. Implementations log their own failures
// and never return them: a notification must not change a trade result.
type Notifier interface {
	Send(ctx context.Context, kind string, payload map[string]any)
}
