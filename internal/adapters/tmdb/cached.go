package tmdb

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tg-movie-bot/internal/domain"
)

// Cached кэширует карточки и съёмочные группы фильмов. Списки всегда идут в каталог напрямую.
type Cached struct {
	domain.Catalog
	cache domain.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCached оборачивает каталог кэшем.
func NewCached(catalog domain.Catalog, cache domain.Cache, ttl time.Duration, log zerolog.Logger) *Cached {
	return &Cached{Catalog: catalog, cache: cache, ttl: ttl, log: log}
}

// Details возвращает карточку из кэша или из каталога.
func (c *Cached) Details(ctx context.Context, movieID int64) (domain.MovieDetail, bool) {
	key := "details:" + strconv.FormatInt(movieID, 10)
	var detail domain.MovieDetail
	if c.lookup(ctx, key, &detail) {
		return detail, true
	}
	detail, ok := c.Catalog.Details(ctx, movieID)
	if ok {
		c.store(ctx, key, detail)
	}
	return detail, ok
}

// Credits возвращает съёмочную группу из кэша или из каталога.
func (c *Cached) Credits(ctx context.Context, movieID int64) (domain.Credits, bool) {
	key := "credits:" + strconv.FormatInt(movieID, 10)
	var credits domain.Credits
	if c.lookup(ctx, key, &credits) {
		return credits, true
	}
	credits, ok := c.Catalog.Credits(ctx, movieID)
	if ok {
		c.store(ctx, key, credits)
	}
	return credits, ok
}

func (c *Cached) lookup(ctx context.Context, key string, out any) bool {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("tmdb: кэш недоступен")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("tmdb: повреждённая запись кэша")
		return false
	}
	return true
}

func (c *Cached) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("tmdb: не удалось записать кэш")
	}
}
