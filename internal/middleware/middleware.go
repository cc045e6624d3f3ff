package middleware

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/internal/quota"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

type Middlewares struct {
	accounts types.AccountStore
	gate     *quota.Gate
}

func NewLimitsMiddleware(accounts types.AccountStore, gate *quota.Gate) *Middlewares {
	return &Middlewares{
		accounts: accounts,
		gate:     gate,
	}
}

// ResolveAccountMiddleware creates the account lazily on the first observed
// interaction and puts it on the context for everything downstream.
func (m *Middlewares) ResolveAccountMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var from *models.User
		var chatID int64

		switch {
		case update.Message != nil && update.Message.From != nil:
			from = update.Message.From
			chatID = update.Message.Chat.ID
		case update.CallbackQuery != nil:
			from = &update.CallbackQuery.From
			chatID = getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
			ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
		default:
			return
		}

		if from == nil || from.ID == 0 {
			return
		}

		account, err := m.accounts.GetOrCreateAccount(ctx, from.ID, from.Username, fullName(from))
		if err != nil {
			log.Printf("Error resolving account %d: %v", from.ID, err)
			if chatID != 0 {
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID:    chatID,
					Text:      messages.ErrorDefault(),
					ParseMode: messages.ParseModeHTML,
				})
			}
			return
		}

		next(contextkeys.WithAccount(ctx, account), b, update)
	}
}

// LimitsMiddleware classifies the request and runs it through the quota gate.
// Rejected requests are answered with the limit message and go no further.
// The gate never increments anything here: counting happens in the handlers,
// after the generation call succeeded.
func (m *Middlewares) LimitsMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		kind := classifyUpdate(update)
		ctx = contextkeys.WithRequestKind(ctx, kind)

		account, ok := contextkeys.GetAccount(ctx)
		if !ok {
			next(ctx, b, update)
			return
		}

		if err := m.gate.Check(account, kind, time.Now().UTC()); err != nil {
			var exceeded *quota.ExceededError
			if errors.As(err, &exceeded) && update.Message != nil {
				text := messages.LimitTextExceeded()
				if exceeded.Kind == quota.KindImage {
					text = messages.LimitImageExceeded()
				}
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID:    update.Message.Chat.ID,
					Text:      text,
					ParseMode: messages.ParseModeHTML,
				})
			}
			return
		}

		next(ctx, b, update)
	}
}

func classifyUpdate(update *models.Update) quota.RequestKind {
	// Callback presses are control flow, never counted.
	if update.CallbackQuery != nil || update.Message == nil {
		return quota.KindExempt
	}
	return quota.Classify(update.Message.Text, len(update.Message.Photo) > 0)
}

func fullName(u *models.User) string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}
