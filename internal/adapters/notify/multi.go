package notify

import (
	"context"

	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Multi fans a notification out to every sink.
type Multi []ports.Notifier

func (m Multi) Send(ctx context.Context, kind string, payload map[string]any) {
	for _, n := range m {
		if n != nil {
			n.Send(ctx, kind, payload)
		}
	}
}
