package notify

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Telegram delivers alerts to one chat via a bot.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegram creates the channel. The bot is created without a poller: this
// is a pure sender.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Name implements Channel.
func (t *Telegram) Name() string { return "telegram" }

// Send implements Channel.
func (t *Telegram) Send(ctx context.Context, a Alert) error {
	msg := "*" + a.Title + "*"
	if a.Body != "" {
		msg += "\n" + a.Body
	}
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(tele.ChatID(t.chatID), msg, tele.ModeMarkdown)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("telegram send timed out")
	}
}
