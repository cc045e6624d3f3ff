package webhook

import (
	"context"
	"time"

	"github.com/go-telegram/bot"

	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
)

// BotNotifier delivers the payment confirmation through the same bot the user
// talks to. Private chats share the user's telegram id as chat id.
type BotNotifier struct {
	bot *bot.Bot
}

func NewBotNotifier(b *bot.Bot) *BotNotifier {
	return &BotNotifier{bot: b}
}

func (n *BotNotifier) NotifyPaymentApplied(ctx context.Context, telegramID int64, until time.Time) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    telegramID,
		Text:      messages.PaymentSucceeded(until),
		ParseMode: messages.ParseModeHTML,
	})
	return err
}
