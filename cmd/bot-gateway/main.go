package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/adapters/bot"
	"tg-xpost-bot/internal/adapters/discovery"
	"tg-xpost-bot/internal/adapters/publisher"
	"tg-xpost-bot/internal/adapters/ranker"
	"tg-xpost-bot/internal/adapters/research"
	"tg-xpost-bot/internal/infra/config"
	"tg-xpost-bot/internal/infra/log"
	"tg-xpost-bot/internal/infra/metrics"
	"tg-xpost-bot/internal/infra/ollama"
	"tg-xpost-bot/internal/usecase/proposal"
	"tg-xpost-bot/internal/usecase/session"
	"tg-xpost-bot/internal/usecase/workflow"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	topics := discovery.NewReddit(logger, cfg.Reddit.BaseURL, cfg.Reddit.UserAgent)
	hashtags := discovery.NewNitter(logger, cfg.Nitter.BaseURL)
	search := research.NewDuckDuckGo(logger, cfg.Search.BaseURL)
	generator := ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model, cfg.Ollama.Timeout)
	poster := publisher.NewX(cfg.X.BaseURL, cfg.X.AccessToken)

	wf := workflow.NewService(
		logger,
		session.New(),
		topics,
		hashtags,
		search,
		proposal.NewService(generator),
		poster,
		ranker.NewEngagement(),
		cfg.Telegram.OwnerID,
		cfg.Limits.DiscoverItems,
		cfg.Limits.ResearchResults,
	)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create bot")
	}
	h := bot.NewHandler(botAPI, logger, wf)

	if cfg.Telegram.WebhookURL != "" {
		runWebhook(ctx, logger, botAPI, h, cfg)
		return
	}
	runPolling(ctx, logger, botAPI, h)
}

func runWebhook(ctx context.Context, logger zerolog.Logger, botAPI *tgbotapi.BotAPI, h *bot.Handler, cfg config.AppConfig) {
	wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid webhook url")
	}
	if _, err := botAPI.Request(wh); err != nil {
		logger.Fatal().Err(err).Msg("failed to register webhook")
	}

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, req *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(req.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("bot gateway started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("stopping bot gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func runPolling(ctx context.Context, logger zerolog.Logger, botAPI *tgbotapi.BotAPI, h *bot.Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := botAPI.GetUpdatesChan(u)
	logger.Info().Msg("bot gateway started in polling mode")

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			logger.Info().Msg("stopping bot gateway")
			return
		case update := <-updates:
			h.HandleUpdate(ctx, update)
		}
	}
}
