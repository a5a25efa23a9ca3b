package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alejandrodnm/valuebot/internal/ports"
)

const (
	// Telegram throttles a chat at roughly 30 messages a minute.
	telegramSendInterval = 2 * time.Second
	telegramQueueSize    = 100
)

// botSender is the part of *tgbotapi.BotAPI the notifier uses.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram queues notifications and sends them to one chat, paced so the
// bot stays under the API limits. Send never blocks: when the queue is full
// the message is dropped and logged.
type Telegram struct {
	bot      botSender
	chatID   int64
	interval time.Duration

	queue chan string
	done  chan struct{}
	once  sync.Once
}

var _ ports.Notifier = (*Telegram)(nil)

// NewTelegram connects the bot. Call Start to begin delivering.
func NewTelegram(token, chatID string) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: invalid chat id: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	slog.Info("telegram: bot authorized", "bot", bot.Self.UserName, "chat_id", id)
	return newTelegram(bot, id, telegramSendInterval), nil
}

func newTelegram(bot botSender, chatID int64, interval time.Duration) *Telegram {
	return &Telegram{
		bot:      bot,
		chatID:   chatID,
		interval: interval,
		queue:    make(chan string, telegramQueueSize),
		done:     make(chan struct{}),
	}
}

// Send enqueues the notification.
func (t *Telegram) Send(_ context.Context, kind string, payload map[string]any) {
	select {
	case t.queue <- formatMessage(kind, payload):
	default:
		slog.Warn("telegram: queue full, dropping notification", "kind", kind)
	}
}

// Start delivers queued messages until ctx is cancelled, then flushes what
// is left and returns. It is meant to run in its own goroutine.
func (t *Telegram) Start(ctx context.Context) {
	defer t.once.Do(func() { close(t.done) })

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flush()
			return
		case text := <-t.queue:
			t.deliver(text)
			select {
			case <-ctx.Done():
				t.flush()
				return
			case <-ticker.C:
			}
		}
	}
}

// Done is closed once Start has returned.
func (t *Telegram) Done() <-chan struct{} { return t.done }

func (t *Telegram) flush() {
	for {
		select {
		case text := <-t.queue:
			t.deliver(text)
		default:
			return
		}
	}
}

func (t *Telegram) deliver(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		slog.Warn("telegram: send failed", "err", err)
	}
}
