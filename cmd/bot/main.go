package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"release-relay/internal/config"
	"release-relay/internal/store"
	"release-relay/internal/sweeper"
	"release-relay/internal/telegram"
	"release-relay/internal/webhook"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading configuration failed")
	}
	if cfg.WebhookSecret == "" {
		logger.Warn().Msg("WEBHOOK_SECRET not set, webhook signature verification is disabled")
	}
	if len(cfg.Targets) == 0 {
		logger.Warn().Msg("no delivery targets configured, incoming releases will be ignored")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening store failed")
	}
	defer st.Close()

	bot, err := gotgbot.NewBot(cfg.TelegramToken, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating bot failed")
	}
	logger.Info().Str("bot", bot.User.Username).Msg("bot authorized")

	policy := telegram.RetryPolicy{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay}
	client := telegram.NewClient(bot, policy, cfg.MessageRate, logger)
	dispatcher := webhook.NewDispatcher(cfg, st, client, logger)
	srv := webhook.NewServer(cfg, st, client, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweep := sweeper.New(st, client, cfg.Retention, cfg.SweepInterval, logger)
	go sweep.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "GitHub release relay for %s is running.\n", cfg.GitHubUser)
	})
	mux.HandleFunc("/webhook", srv.Handler)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("port", cfg.Port).Msg("server listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
