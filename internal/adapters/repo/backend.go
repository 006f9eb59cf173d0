package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/cache"
	"tg-movie-bot/internal/infra/config"
	"tg-movie-bot/internal/infra/db"
	"tg-movie-bot/internal/infra/state"
)

// ErrUnknownBackend возвращается для неизвестного бэкенда хранения.
var ErrUnknownBackend = errors.New("неизвестный бэкенд хранения истории")

// StateName — имя записи истории в таблице bot_state.
const StateName = "recency"

// Backend описывает, где хранить историю рекомендаций.
type Backend struct {
	Kind  string
	File  string
	Key   string
	PGDSN string
	// Redis переиспользуется, если клиент уже создан; иначе подключение по RedisAddr.
	Redis     *redis.Client
	RedisAddr string
}

// OpenState открывает хранилище состояния. Возвращённая функция освобождает соединения.
func OpenState(ctx context.Context, b Backend) (domain.StateStorage, func(), error) {
	switch b.Kind {
	case config.RecencyBackendFile, "":
		if b.File == "" {
			return nil, nil, errors.New("не задан путь к файлу истории")
		}
		return state.NewFile(b.File), func() {}, nil
	case config.RecencyBackendRedis:
		client := b.Redis
		closer := func() {}
		if client == nil {
			if b.RedisAddr == "" {
				return nil, nil, errors.New("для бэкенда redis нужен REDIS_ADDR")
			}
			var err error
			client, err = cache.Connect(ctx, b.RedisAddr)
			if err != nil {
				return nil, nil, fmt.Errorf("подключение к redis: %w", err)
			}
			closer = func() { _ = client.Close() }
		}
		return cache.NewRedisState(client, b.Key), closer, nil
	case config.RecencyBackendPostgres:
		if b.PGDSN == "" {
			return nil, nil, errors.New("для бэкенда postgres нужен PG_DSN")
		}
		pool, err := db.Connect(ctx, b.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		st := NewPostgresState(pool, StateName)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, b.Kind)
	}
}
