package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

// HandleTextPrompt answers free-form text through the model. The text counter
// only moves after the generation succeeded: a provider failure costs nothing.
func (bh *Handlers) HandleTextPrompt(ctx context.Context, b *bot.Bot, msg *models.Message, account *types.Account) {
	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: msg.Chat.ID,
		Action: models.ChatActionTyping,
	})

	answer, err := bh.generator.GenerateText(ctx, msg.Text)
	if err != nil {
		log.Printf("Text generation failed for %d: %v", account.TelegramID, err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      messages.GenerationFailed(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}

	if err := bh.accounts.IncrementUsage(ctx, account.TelegramID, types.UsageText); err != nil {
		log.Printf("Error incrementing text usage for %d: %v", account.TelegramID, err)
	}

	bh.sendChunked(ctx, b, msg.Chat.ID, answer)
}

// HandlePhoto runs vision analysis. Photo submissions draw from the text
// quota because the answer is text.
func (bh *Handlers) HandlePhoto(ctx context.Context, b *bot.Bot, msg *models.Message, account *types.Account) {
	progress, _ := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   messages.VisionLooking(),
	})

	imageBytes, err := bh.downloadLargestPhoto(ctx, b, msg.Photo)
	if err != nil {
		log.Printf("Error downloading photo from %d: %v", account.TelegramID, err)
		bh.replaceProgress(ctx, b, msg.Chat.ID, progress, messages.GenerationFailed())
		return
	}

	prompt := msg.Caption
	if prompt == "" {
		prompt = "Опиши подробно, что на фото."
	}

	answer, err := bh.generator.AnalyzeImage(ctx, prompt, imageBytes)
	if err != nil {
		log.Printf("Vision failed for %d: %v", account.TelegramID, err)
		bh.replaceProgress(ctx, b, msg.Chat.ID, progress, messages.GenerationFailed())
		return
	}

	if err := bh.accounts.IncrementUsage(ctx, account.TelegramID, types.UsageText); err != nil {
		log.Printf("Error incrementing text usage for %d: %v", account.TelegramID, err)
	}

	bh.deleteProgress(ctx, b, msg.Chat.ID, progress)
	bh.sendChunked(ctx, b, msg.Chat.ID, answer)
}

// HandleImagePrompt serves /img. The image counter moves only when the
// picture actually arrived.
func (bh *Handlers) HandleImagePrompt(ctx context.Context, b *bot.Bot, msg *models.Message, account *types.Account, prompt string) {
	if prompt == "" {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      messages.ImagePromptHint(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}

	progress, _ := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   messages.ImageDrawing(),
	})

	imageData, err := bh.generator.GenerateImage(ctx, prompt)
	if err != nil {
		log.Printf("Image generation failed for %d: %v", account.TelegramID, err)
		bh.replaceProgress(ctx, b, msg.Chat.ID, progress, messages.GenerationFailed())
		return
	}

	if err := bh.accounts.IncrementUsage(ctx, account.TelegramID, types.UsageImage); err != nil {
		log.Printf("Error incrementing image usage for %d: %v", account.TelegramID, err)
	}

	_, _ = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: msg.Chat.ID,
		Photo: &models.InputFileUpload{
			Filename: "image.jpg",
			Data:     bytes.NewReader(imageData),
		},
		Caption: messages.ImageCaption(prompt),
	})

	bh.deleteProgress(ctx, b, msg.Chat.ID, progress)
}

func (bh *Handlers) downloadLargestPhoto(ctx context.Context, b *bot.Bot, sizes []models.PhotoSize) ([]byte, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no photo sizes in message")
	}
	best := sizes[0]
	for i := 1; i < len(sizes); i++ {
		if sizes[i].FileSize > best.FileSize {
			best = sizes[i]
		}
	}

	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: best.FileID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

func (bh *Handlers) replaceProgress(ctx context.Context, b *bot.Bot, chatID int64, progress *models.Message, text string) {
	if progress == nil {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: messages.ParseModeHTML,
		})
		return
	}
	_, _ = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: progress.ID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
}

func (bh *Handlers) deleteProgress(ctx context.Context, b *bot.Bot, chatID int64, progress *models.Message) {
	if progress == nil {
		return
	}
	_, _ = b.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: progress.ID,
	})
}
