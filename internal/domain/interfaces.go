package domain

import (
	"context"
	"time"
)

// Catalog предоставляет доступ к внешнему каталогу фильмов только на чтение.
// Ошибки транспорта не пробрасываются: пустой результат означает временную недоступность.
type Catalog interface {
	TopRated(ctx context.Context, page int) []Movie
	Trending(ctx context.Context) []Movie
	Search(ctx context.Context, query string) []Movie
	Details(ctx context.Context, movieID int64) (MovieDetail, bool)
	Credits(ctx context.Context, movieID int64) (Credits, bool)
}

// Notifier доставляет сообщения получателю.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// StateStorage хранит одну сериализованную запись состояния.
// Read возвращает nil без ошибки, если запись ещё не создана.
type StateStorage interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}
