package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-movie-bot/internal/infra/metrics"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт кэш с префиксом ключей.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "cache_set", c.prefix, start, err)
	return err
}

// Get возвращает значение и признак его наличия.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "cache_get", c.prefix, start, nil)
		return nil, false, nil
	}
	metrics.ObserveNetworkRequest("redis", "cache_get", c.prefix, start, err)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// RedisState хранит запись состояния под одним ключом без TTL.
type RedisState struct {
	client *redis.Client
	key    string
}

// NewRedisState создаёт хранилище состояния.
func NewRedisState(client *redis.Client, key string) *RedisState {
	return &RedisState{client: client, key: key}
}

// Read возвращает сохранённое состояние или nil, если ключа нет.
func (s *RedisState) Read(ctx context.Context) ([]byte, error) {
	start := time.Now()
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "state_read", s.key, start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("redis", "state_read", s.key, start, err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write перезаписывает состояние.
func (s *RedisState) Write(ctx context.Context, payload []byte) error {
	start := time.Now()
	err := s.client.Set(ctx, s.key, payload, 0).Err()
	metrics.ObserveNetworkRequest("redis", "state_write", s.key, start, err)
	return err
}

// Connect создаёт клиента Redis и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
