package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

func (bh *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, msg *models.Message, account *types.Account) {
	command := strings.TrimSpace(msg.Text)
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	if strings.Contains(cmd, "@") {
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}

	switch cmd {
	case "/start":
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      messages.StartStatus(account, bh.gate.Limits(), time.Now().UTC()),
			ParseMode: messages.ParseModeHTML,
		})
	case "/help":
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      messages.HelpMessage(bh.gate.Limits()),
			ParseMode: messages.ParseModeHTML,
		})
	case "/img":
		prompt := strings.TrimSpace(strings.TrimPrefix(command, "/img"))
		bh.HandleImagePrompt(ctx, b, msg, account, prompt)
	case "/buy":
		bh.HandleBuy(ctx, b, msg.Chat.ID)
	case "/admin":
		if !bh.cfg.IsAdmin(account.TelegramID) {
			return
		}
		bh.HandleAdminPanel(ctx, b, msg.Chat.ID, account.TelegramID)
	default:
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      messages.ErrorUnknownCommand(),
			ParseMode: messages.ParseModeHTML,
		})
	}
}

func (bh *Handlers) HandleBuy(ctx context.Context, b *bot.Bot, chatID int64) {
	tariffs, err := bh.tariffs.ListActiveTariffs(ctx)
	if err != nil {
		log.Printf("Error listing tariffs: %v", err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.ErrorDefault(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}
	if len(tariffs) == 0 {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.BuyNoTariffs(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(tariffs))
	for _, t := range tariffs {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: messages.TariffButton(t), CallbackData: buyCallbackData(t.ID)},
		})
	}

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.BuyChooseTariff(),
		ParseMode: messages.ParseModeHTML,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: rows,
		},
	})
}
