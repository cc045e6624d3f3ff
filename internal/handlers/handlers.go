package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/broadcast"
	"github.com/BatmanBruc/bat-bot-neuro/internal/config"
	"github.com/BatmanBruc/bat-bot-neuro/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/internal/payment"
	"github.com/BatmanBruc/bat-bot-neuro/internal/quota"
	"github.com/BatmanBruc/bat-bot-neuro/internal/subscription"
	"github.com/BatmanBruc/bat-bot-neuro/store"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	AnalyzeImage(ctx context.Context, prompt string, imageBytes []byte) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, req payment.CreateRequest) (paymentURL, paymentID string, err error)
}

type BroadcastEnqueuer interface {
	Enqueue(job broadcast.Job) bool
}

type Handlers struct {
	accounts    types.AccountStore
	tariffs     types.TariffStore
	ledger      *subscription.Ledger
	gate        *quota.Gate
	generator   Generator
	payments    PaymentCreator
	broadcaster BroadcastEnqueuer
	states      *store.RedisStateStore
	cfg         config.Config
}

func NewHandlers(
	accounts types.AccountStore,
	tariffs types.TariffStore,
	ledger *subscription.Ledger,
	gate *quota.Gate,
	generator Generator,
	payments PaymentCreator,
	broadcaster BroadcastEnqueuer,
	states *store.RedisStateStore,
	cfg config.Config,
) *Handlers {
	return &Handlers{
		accounts:    accounts,
		tariffs:     tariffs,
		ledger:      ledger,
		gate:        gate,
		generator:   generator,
		payments:    payments,
		broadcaster: broadcaster,
		states:      states,
		cfg:         cfg,
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	account, ok := contextkeys.GetAccount(ctx)
	if !ok {
		log.Printf("Error: account not found in context")
		return
	}

	if update.CallbackQuery != nil {
		bh.HandleCallback(ctx, b, update, account)
		return
	}
	if update.Message == nil {
		return
	}
	msg := update.Message

	// Admin dialogs (grant/revoke/broadcast) capture plain messages until the
	// dialog finishes or is abandoned.
	if bh.cfg.IsAdmin(account.TelegramID) && bh.states != nil {
		state, err := bh.states.GetAdminState(ctx, account.TelegramID)
		if err != nil {
			log.Printf("Error reading admin state for %d: %v", account.TelegramID, err)
		}
		if state != nil && !strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
			bh.HandleAdminInput(ctx, b, msg, account, state)
			return
		}
	}

	switch {
	case len(msg.Photo) > 0:
		bh.HandlePhoto(ctx, b, msg, account)
	case strings.HasPrefix(strings.TrimSpace(msg.Text), "/"):
		bh.HandleCommand(ctx, b, msg, account)
	case strings.TrimSpace(msg.Text) != "":
		bh.HandleTextPrompt(ctx, b, msg, account)
	default:
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      messages.ErrorUnsupportedMessageType(),
			ParseMode: messages.ParseModeHTML,
		})
	}
}

func (bh *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string, alert bool) {
	_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
}

const maxMessageLength = 4000

// sendChunked splits answers that exceed the Telegram message limit.
func (bh *Handlers) sendChunked(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if text == "" {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   messages.EmptyAIAnswer(),
		})
		return
	}
	runes := []rune(text)
	for start := 0; start < len(runes); start += maxMessageLength {
		end := start + maxMessageLength
		if end > len(runes) {
			end = len(runes)
		}
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      string(runes[start:end]),
			ParseMode: messages.ParseModeHTML,
		})
		if err != nil {
			// Model output sometimes trips HTML parsing; retry the chunk raw.
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   string(runes[start:end]),
			})
		}
	}
}
