// Package broadcast delivers an admin-authored message to every known
// account. Jobs run on a single worker so two broadcasts never interleave,
// and sends are paced to stay under the Telegram flood limits.
package broadcast

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-telegram/bot"

	"github.com/BatmanBruc/bat-bot-neuro/internal/messages"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

const sendPause = 50 * time.Millisecond

type Job struct {
	FromChatID   int64
	MessageID    int
	ReportChatID int64
}

type Broadcaster struct {
	accounts  types.AccountStore
	botClient *bot.Bot

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	jobs    chan Job
}

func NewBroadcaster(accounts types.AccountStore, botClient *bot.Bot) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		accounts:  accounts,
		botClient: botClient,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(chan Job, 4),
	}
}

func (br *Broadcaster) Start() {
	br.mu.Lock()
	if br.running {
		br.mu.Unlock()
		return
	}
	br.running = true
	br.mu.Unlock()

	br.wg.Add(1)
	go br.worker()
}

func (br *Broadcaster) Stop() {
	br.cancel()
	br.wg.Wait()
}

// Enqueue schedules a broadcast. Reports false when the queue is full.
func (br *Broadcaster) Enqueue(job Job) bool {
	select {
	case br.jobs <- job:
		return true
	default:
		return false
	}
}

func (br *Broadcaster) worker() {
	defer br.wg.Done()
	for {
		select {
		case <-br.ctx.Done():
			return
		case job := <-br.jobs:
			br.run(job)
		}
	}
}

func (br *Broadcaster) run(job Job) {
	ids, err := br.accounts.ListAccountIDs(br.ctx)
	if err != nil {
		log.Printf("Broadcast: failed to list accounts: %v", err)
		br.report(messages.ErrorDefault(), job.ReportChatID)
		return
	}

	br.report(messages.AdminBroadcastStarted(len(ids)), job.ReportChatID)

	delivered := 0
	for _, id := range ids {
		select {
		case <-br.ctx.Done():
			return
		default:
		}
		_, err := br.botClient.CopyMessage(br.ctx, &bot.CopyMessageParams{
			ChatID:     id,
			FromChatID: job.FromChatID,
			MessageID:  job.MessageID,
		})
		if err == nil {
			delivered++
		}
		time.Sleep(sendPause)
	}

	log.Printf("Broadcast: finished, delivered=%d total=%d", delivered, len(ids))
	br.report(messages.AdminBroadcastDone(delivered), job.ReportChatID)
}

func (br *Broadcaster) report(text string, chatID int64) {
	if chatID == 0 {
		return
	}
	_, _ = br.botClient.SendMessage(br.ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
}
