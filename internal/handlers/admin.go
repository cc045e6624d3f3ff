package handlers

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/broadcast"
	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/store"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

func (bh *Handlers) adminKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "🎁 Выдать Премиум", CallbackData: "admin_give_prem"}},
			{{Text: "💀 Забрать Премиум", CallbackData: "admin_del_prem"}},
			{{Text: "📢 Рассылка", CallbackData: "admin_broadcast"}},
			{{Text: "🔄 Обновить", CallbackData: "admin_refresh"}},
		},
	}
}

func (bh *Handlers) HandleAdminPanel(ctx context.Context, b *bot.Bot, chatID, adminID int64) {
	stats, err := bh.accounts.AggregateStats(ctx)
	if err != nil {
		log.Printf("Error aggregating stats: %v", err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.ErrorDefault(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        messages.AdminPanel(adminID, stats),
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: bh.adminKeyboard(),
	})
}

func (bh *Handlers) HandleAdminCallback(ctx context.Context, b *bot.Bot, update *models.Update, account *types.Account, data string) {
	cq := update.CallbackQuery
	chatID := int64(0)
	if cq.Message.Message != nil {
		chatID = cq.Message.Message.Chat.ID
	}

	switch data {
	case "admin_refresh":
		bh.refreshAdminPanel(ctx, b, cq, account.TelegramID)
	case "admin_give_prem":
		bh.startAdminDialog(ctx, b, cq, chatID, account.TelegramID, store.StepGiveWaitUserID, messages.AdminAskGiveUserID())
	case "admin_del_prem":
		bh.startAdminDialog(ctx, b, cq, chatID, account.TelegramID, store.StepRevokeWaitUserID, messages.AdminAskRevokeUserID())
	case "admin_broadcast":
		bh.startAdminDialog(ctx, b, cq, chatID, account.TelegramID, store.StepBroadcastWait, messages.AdminAskBroadcast())
	case "confirm_send":
		bh.confirmBroadcast(ctx, b, cq, chatID, account.TelegramID)
	case "cancel_send":
		bh.cancelBroadcast(ctx, b, cq, chatID, account.TelegramID)
	default:
		bh.answerCallback(ctx, b, cq.ID, "", false)
	}
}

func (bh *Handlers) refreshAdminPanel(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, adminID int64) {
	if cq.Message.Message == nil {
		bh.answerCallback(ctx, b, cq.ID, "", false)
		return
	}
	msg := cq.Message.Message
	stats, err := bh.accounts.AggregateStats(ctx)
	if err != nil {
		log.Printf("Error aggregating stats: %v", err)
		bh.answerCallback(ctx, b, cq.ID, messages.ErrorDefault(), false)
		return
	}
	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        messages.AdminPanel(adminID, stats),
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: bh.adminKeyboard(),
	})
	if err != nil {
		bh.answerCallback(ctx, b, cq.ID, "Нет изменений", false)
		return
	}
	bh.answerCallback(ctx, b, cq.ID, "Обновлено", false)
}

func (bh *Handlers) startAdminDialog(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, chatID, adminID int64, step store.AdminStep, prompt string) {
	if err := bh.states.SetAdminState(ctx, adminID, &store.AdminState{Step: step}); err != nil {
		log.Printf("Error saving admin state for %d: %v", adminID, err)
		bh.answerCallback(ctx, b, cq.ID, messages.ErrorDefault(), false)
		return
	}
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      prompt,
		ParseMode: messages.ParseModeHTML,
	})
	bh.answerCallback(ctx, b, cq.ID, "", false)
}

// HandleAdminInput advances a multi-message admin dialog one step.
func (bh *Handlers) HandleAdminInput(ctx context.Context, b *bot.Bot, msg *models.Message, account *types.Account, state *store.AdminState) {
	adminID := account.TelegramID
	chatID := msg.Chat.ID

	switch state.Step {
	case store.StepGiveWaitUserID:
		target, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
		if err != nil {
			bh.sendPlain(ctx, b, chatID, messages.AdminEnterNumber())
			return
		}
		state.Step = store.StepGiveWaitDuration
		state.TargetID = target
		if err := bh.states.SetAdminState(ctx, adminID, state); err != nil {
			log.Printf("Error saving admin state for %d: %v", adminID, err)
			bh.sendPlain(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		bh.sendPlain(ctx, b, chatID, messages.AdminAskDuration())

	case store.StepGiveWaitDuration:
		days, err := strconv.Atoi(strings.TrimSpace(msg.Text))
		if err != nil || days <= 0 {
			bh.sendPlain(ctx, b, chatID, messages.AdminEnterNumber())
			return
		}
		// Target may have never talked to the bot: create the account first
		// so the ledger has a row to extend.
		if _, err := bh.accounts.GetOrCreateAccount(ctx, state.TargetID, "", ""); err != nil {
			log.Printf("Error creating account %d: %v", state.TargetID, err)
			bh.sendPlain(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		newUntil, err := bh.ledger.Extend(ctx, state.TargetID, days)
		if err != nil {
			log.Printf("Error extending premium for %d: %v", state.TargetID, err)
			bh.sendPlain(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		_ = bh.states.ClearAdminState(ctx, adminID)
		bh.sendPlain(ctx, b, chatID, messages.AdminGiveDone(state.TargetID, newUntil))

		// Courtesy note to the recipient, best effort.
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: state.TargetID,
			Text:   messages.PremiumGift(days),
		})

	case store.StepRevokeWaitUserID:
		target, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
		if err != nil {
			bh.sendPlain(ctx, b, chatID, messages.AdminEnterNumber())
			return
		}
		if err := bh.ledger.Revoke(ctx, target); err != nil {
			log.Printf("Error revoking premium for %d: %v", target, err)
			bh.sendPlain(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		_ = bh.states.ClearAdminState(ctx, adminID)
		bh.sendPlain(ctx, b, chatID, messages.AdminRevokeDone(target))

	case store.StepBroadcastWait:
		state.Step = store.StepBroadcastConfirm
		state.FromChatID = chatID
		state.MessageID = msg.ID
		if err := bh.states.SetAdminState(ctx, adminID, state); err != nil {
			log.Printf("Error saving admin state for %d: %v", adminID, err)
			bh.sendPlain(ctx, b, chatID, messages.ErrorDefault())
			return
		}
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.AdminBroadcastPreview(),
			ParseMode: messages.ParseModeHTML,
			ReplyMarkup: &models.InlineKeyboardMarkup{
				InlineKeyboard: [][]models.InlineKeyboardButton{{
					{Text: "✅ Отправить", CallbackData: "confirm_send"},
					{Text: "❌ Отмена", CallbackData: "cancel_send"},
				}},
			},
		})
		// Show the admin exactly what subscribers will receive.
		_, _ = b.CopyMessage(ctx, &bot.CopyMessageParams{
			ChatID:     chatID,
			FromChatID: chatID,
			MessageID:  msg.ID,
		})

	default:
		_ = bh.states.ClearAdminState(ctx, adminID)
	}
}

func (bh *Handlers) confirmBroadcast(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, chatID, adminID int64) {
	state, err := bh.states.GetAdminState(ctx, adminID)
	if err != nil || state == nil || state.Step != store.StepBroadcastConfirm {
		bh.answerCallback(ctx, b, cq.ID, "", false)
		return
	}
	_ = bh.states.ClearAdminState(ctx, adminID)

	ok := bh.broadcaster.Enqueue(broadcast.Job{
		FromChatID:   state.FromChatID,
		MessageID:    state.MessageID,
		ReportChatID: chatID,
	})
	if !ok {
		bh.answerCallback(ctx, b, cq.ID, messages.ErrorDefault(), true)
		return
	}
	bh.answerCallback(ctx, b, cq.ID, "", false)
}

func (bh *Handlers) cancelBroadcast(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, chatID, adminID int64) {
	_ = bh.states.ClearAdminState(ctx, adminID)
	if cq.Message.Message != nil {
		_, _ = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: cq.Message.Message.ID,
			Text:      messages.AdminBroadcastCancelled(),
			ParseMode: messages.ParseModeHTML,
		})
	}
	bh.answerCallback(ctx, b, cq.ID, "", false)
}

func (bh *Handlers) sendPlain(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
}
