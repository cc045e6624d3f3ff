package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-neuro/internal/ai"
	"github.com/BatmanBruc/bat-bot-neuro/internal/broadcast"
	"github.com/BatmanBruc/bat-bot-neuro/internal/config"
	"github.com/BatmanBruc/bat-bot-neuro/internal/handlers"
	"github.com/BatmanBruc/bat-bot-neuro/internal/middleware"
	"github.com/BatmanBruc/bat-bot-neuro/internal/payment"
	"github.com/BatmanBruc/bat-bot-neuro/internal/quota"
	"github.com/BatmanBruc/bat-bot-neuro/internal/subscription"
	"github.com/BatmanBruc/bat-bot-neuro/internal/webhook"
	"github.com/BatmanBruc/bat-bot-neuro/store"
)

func main() {
	_ = config.LoadEnvFile("config.env")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := config.FromEnv()
	if cfg.BotToken == "" {
		log.Fatal("Error: TG_TOKEN not found")
	}

	rdb, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, "bot_neuro")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	stateStore := store.NewRedisStateStore(rdb, 24)

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	gate := quota.NewGate(quota.Limits{
		Text:  cfg.FreeTextLimit,
		Image: cfg.FreeImageLimit,
	})
	middlewares := middleware.NewLimitsMiddleware(pgStore, gate)

	httpClient := &http.Client{
		Timeout: 10 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	generator := ai.NewClient(cfg.GoogleAPIKey, cfg.GeminiModel)
	payments := payment.NewClient(cfg.YooKassaShopID, cfg.YooKassaSecretKey, cfg.PaymentReturnURL)
	ledger := subscription.NewLedger(pgStore)

	broadcaster := broadcast.NewBroadcaster(pgStore, b)
	broadcaster.Start()
	defer broadcaster.Stop()

	h := handlers.NewHandlers(pgStore, pgStore, ledger, gate, generator, payments, broadcaster, stateStore, cfg)

	handlerChain := middlewares.ResolveAccountMiddleware(
		middlewares.LimitsMiddleware(
			h.MainHandler,
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	// YooKassa calls back on its own schedule, independent of bot polling.
	wh := webhook.NewHandler(ledger, webhook.NewBotNotifier(b))
	srv := &http.Server{
		Addr:    cfg.WebhookAddr,
		Handler: wh.Router(),
	}
	go func() {
		log.Printf("Payment webhook listening on %s%s", cfg.WebhookAddr, webhook.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Webhook server failed: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	b.Start(ctx)
}
