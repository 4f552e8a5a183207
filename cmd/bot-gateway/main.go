package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"anon-ask-bot/internal/adapters/bot"
	"anon-ask-bot/internal/adapters/repo"
	"anon-ask-bot/internal/adapters/telegram"
	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/cache"
	"anon-ask-bot/internal/infra/config"
	"anon-ask-bot/internal/infra/db"
	httpinfra "anon-ask-bot/internal/infra/http"
	"anon-ask-bot/internal/infra/log"
	"anon-ask-bot/internal/infra/metrics"
	"anon-ask-bot/internal/usecase/ads"
	"anon-ask-bot/internal/usecase/gate"
	"anon-ask-bot/internal/usecase/referral"
	"anon-ask-bot/internal/usecase/relay"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	cacheAdapter := cache.NewRedis(redisClient)
	transport := telegram.NewTransport(botAPI, logger)

	gateService := gate.NewService(repoAdapter, transport, logger)
	referralService := referral.NewService(repoAdapter, logger)
	adsService := ads.NewService(repoAdapter, repoAdapter, cacheAdapter, transport, cfg.Ads.CursorTTL, logger)
	relayService := relay.NewService(relay.NewSessionStore(), repoAdapter, transport, gateService, referralService, adsService, logger)

	h := bot.NewHandler(relayService, transport, logger)

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный URL вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось установить вебхук")
		}
	}

	srv := httpinfra.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("не удалось корректно остановить сервер")
	}
}

var _ domain.UserRepo = (*repo.Postgres)(nil)
var _ domain.ChannelRepo = (*repo.Postgres)(nil)
var _ domain.ReferralRepo = (*repo.Postgres)(nil)
var _ domain.AdRepo = (*repo.Postgres)(nil)
var _ domain.Cache = (*cache.RedisCache)(nil)
var _ domain.Transport = (*telegram.Transport)(nil)
