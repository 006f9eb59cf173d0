package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-movie-bot/internal/adapters/bot"
	"tg-movie-bot/internal/adapters/repo"
	"tg-movie-bot/internal/adapters/telegram"
	"tg-movie-bot/internal/adapters/tmdb"
	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/cache"
	"tg-movie-bot/internal/infra/config"
	httpinfra "tg-movie-bot/internal/infra/http"
	"tg-movie-bot/internal/infra/log"
	"tg-movie-bot/internal/infra/metrics"
	"tg-movie-bot/internal/infra/supervisor"
	"tg-movie-bot/internal/usecase/recency"
	"tg-movie-bot/internal/usecase/recommend"
	"tg-movie-bot/internal/usecase/schedule"
)

const (
	pollTimeoutSeconds = 30
	webhookPath        = "/bot/webhook"
	catalogCachePrefix = "movie_bot:tmdb:"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("не задан TG_BOT_TOKEN")
	}
	loc, err := schedule.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("некорректный часовой пояс")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к Redis")
		}
		defer redisClient.Close()
	}

	storage, closeStorage, err := repo.OpenState(ctx, repo.Backend{
		Kind:  cfg.Recency.Backend,
		File:  cfg.Recency.File,
		Key:   cfg.Recency.Key,
		PGDSN: cfg.PGDSN,
		Redis: redisClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Recency.Backend).Msg("не удалось открыть хранилище истории")
	}
	defer closeStorage()

	store := recency.NewStore(storage, cfg.Recency.MaxHistory, logger)
	store.Load(ctx)
	persister := recency.NewPersister(store, logger)

	tmdbClient := tmdb.NewClient(tmdb.Config{
		BaseURL:  cfg.TMDB.BaseURL,
		Token:    cfg.TMDB.Token,
		Language: cfg.TMDB.Language,
		Timeout:  cfg.TMDB.Timeout,
		RPS:      cfg.TMDB.RPS,
	}, logger.With().Str("component", "tmdb").Logger())
	var catalog domain.Catalog = tmdbClient
	if redisClient != nil {
		catalog = tmdb.NewCached(tmdbClient, cache.NewRedis(redisClient, catalogCachePrefix), cfg.CatalogCacheTTL, logger)
	}

	selector := recommend.NewSelector(catalog, store, logger.With().Str("component", "recommend").Logger(), recommend.Options{
		MaxAttempts:   cfg.Schedule.MaxAttempts,
		RetryDelay:    cfg.Schedule.RetryDelay,
		PosterBaseURL: cfg.TMDB.ImageBaseURL,
	})

	httpClient := &http.Client{Timeout: cfg.Telegram.Timeout + pollTimeoutSeconds*time.Second}
	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("бот авторизован")

	notifier := telegram.NewNotifier(botAPI, logger, cfg.Telegram.Timeout)
	scheduler := schedule.NewService(selector, catalog, notifier, persister, logger, schedule.Options{
		Interval: cfg.Schedule.Interval,
		Location: loc,
	})
	handler := bot.NewHandler(botAPI, notifier, catalog, scheduler, store, persister, logger, bot.Options{
		Interval:      cfg.Schedule.Interval,
		PosterBaseURL: cfg.TMDB.ImageBaseURL,
	})

	server := httpinfra.NewServer(fmt.Sprintf(":%d", cfg.Port), logger)

	sup := supervisor.New("movie-bot", logger)
	sup.Add(supervisor.Named("http", server.Serve))
	sup.Add(supervisor.Named("recency-persister", persister.Serve))
	sup.Add(supervisor.Named("scheduler", scheduler.Serve))

	var webhook *bot.Webhook
	if cfg.Telegram.WebhookURL != "" {
		webhook = bot.NewWebhook(ctx, handler, logger)
		server.Router.With(httpinfra.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).
			Post(webhookPath, webhook.ServeHTTP)
		if err := registerWebhook(botAPI, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("режим вебхука")
	} else {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("не удалось удалить вебхук перед long polling")
		}
		sup.Add(bot.NewPoller(botAPI, handler, logger, pollTimeoutSeconds))
	}

	logger.Info().Msg("бот-гейтвей запущен")
	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("супервизор остановлен с ошибкой")
	}

	logger.Info().Msg("остановка бота")
	if webhook != nil {
		webhook.Wait()
	}
	scheduler.Close()
	saveFinal(store, logger)
}

func registerWebhook(botAPI *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{}
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	resp, err := botAPI.MakeRequest("setWebhook", params)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return errors.New(resp.Description)
	}
	return nil
}

func saveFinal(store *recency.Store, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Save(ctx); err != nil {
		logger.Error().Err(err).Msg("финальное сохранение истории не удалось")
	}
}
