package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/internal/payment"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

func buyCallbackData(tariffID int64) string {
	return fmt.Sprintf("buy_%d", tariffID)
}

func parseBuyCallbackData(data string) (int64, error) {
	raw, ok := strings.CutPrefix(data, "buy_")
	if !ok {
		return 0, fmt.Errorf("invalid callback data: %q", data)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (bh *Handlers) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update, account *types.Account) {
	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}
	data = strings.TrimSpace(data)

	switch {
	case strings.HasPrefix(data, "buy_"):
		bh.HandleBuyCallback(ctx, b, update, account, data)
	case strings.HasPrefix(data, "admin_"), data == "confirm_send", data == "cancel_send":
		if !bh.cfg.IsAdmin(account.TelegramID) {
			bh.answerCallback(ctx, b, update.CallbackQuery.ID, "", false)
			return
		}
		bh.HandleAdminCallback(ctx, b, update, account, data)
	default:
		bh.answerCallback(ctx, b, update.CallbackQuery.ID, "", false)
	}
}

// HandleBuyCallback resolves the chosen tariff at its current price and
// creates a YooKassa payment carrying {user, tariff, duration} in metadata.
// The webhook reads those same values back when the payment succeeds.
func (bh *Handlers) HandleBuyCallback(ctx context.Context, b *bot.Bot, update *models.Update, account *types.Account, data string) {
	tariffID, err := parseBuyCallbackData(data)
	if err != nil {
		bh.answerCallback(ctx, b, update.CallbackQuery.ID, "", false)
		return
	}

	tariff, err := bh.tariffs.GetTariff(ctx, tariffID)
	if err != nil {
		log.Printf("Error getting tariff %d: %v", tariffID, err)
		bh.answerCallback(ctx, b, update.CallbackQuery.ID, messages.PaymentSystemError(), true)
		return
	}
	if tariff == nil {
		bh.answerCallback(ctx, b, update.CallbackQuery.ID, messages.TariffNotFound(), true)
		return
	}

	paymentURL, paymentID, err := bh.payments.CreatePayment(ctx, payment.CreateRequest{
		Amount:       tariff.Price,
		Description:  "Подписка: " + tariff.Name,
		TelegramID:   account.TelegramID,
		TariffID:     tariff.ID,
		DurationDays: tariff.DurationDays,
	})
	if err != nil {
		log.Printf("Error creating payment for %d (tariff %d): %v", account.TelegramID, tariffID, err)
		bh.answerCallback(ctx, b, update.CallbackQuery.ID, messages.PaymentSystemError(), true)
		return
	}
	log.Printf("Payment created: id=%s user=%d tariff=%d amount=%d", paymentID, account.TelegramID, tariff.ID, tariff.Price)

	if update.CallbackQuery.Message.Message != nil {
		msg := update.CallbackQuery.Message.Message
		_, _ = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			Text:      messages.InvoiceCreated(*tariff),
			ParseMode: messages.ParseModeHTML,
			ReplyMarkup: &models.InlineKeyboardMarkup{
				InlineKeyboard: [][]models.InlineKeyboardButton{
					{{Text: messages.PayButton(tariff.Price), URL: paymentURL}},
				},
			},
		})
	}
	bh.answerCallback(ctx, b, update.CallbackQuery.ID, "", false)
}
