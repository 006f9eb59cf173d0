package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Бэкенды хранения истории рекомендаций.
const (
	RecencyBackendFile     = "file"
	RecencyBackendRedis    = "redis"
	RecencyBackendPostgres = "postgres"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Kyiv"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token         string        `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string        `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string        `envconfig:"TG_WEBHOOK_SECRET"`
		Timeout       time.Duration `envconfig:"TG_TIMEOUT" default:"20s"`
	} `envconfig:""`

	TMDB struct {
		Token        string        `envconfig:"TMDB_TOKEN"`
		BaseURL      string        `envconfig:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3"`
		ImageBaseURL string        `envconfig:"TMDB_IMAGE_BASE_URL" default:"https://image.tmdb.org/t/p/w500"`
		Language     string        `envconfig:"TMDB_LANGUAGE" default:"uk-UA"`
		Timeout      time.Duration `envconfig:"TMDB_TIMEOUT" default:"20s"`
		RPS          float64       `envconfig:"TMDB_RPS" default:"20"`
	} `envconfig:""`

	Recency struct {
		Backend    string `envconfig:"RECENCY_BACKEND" default:"file"`
		File       string `envconfig:"RECENCY_FILE" default:"sent_ids.json"`
		Key        string `envconfig:"RECENCY_KEY" default:"movie_bot:sent_ids"`
		MaxHistory int    `envconfig:"RECENCY_MAX_HISTORY" default:"1000"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Schedule struct {
		Interval    time.Duration `envconfig:"DELIVERY_INTERVAL" default:"6h"`
		MaxAttempts int           `envconfig:"SELECT_MAX_ATTEMPTS" default:"10"`
		RetryDelay  time.Duration `envconfig:"SELECT_RETRY_DELAY" default:"500ms"`
	} `envconfig:""`

	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"24h"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
