package recency

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const flushTimeout = 10 * time.Second

// Persister сохраняет хранилище вне пути таймеров: запросы на сохранение
// схлопываются, а при остановке выполняется финальная запись.
type Persister struct {
	store    *Store
	log      zerolog.Logger
	requests chan struct{}
}

// NewPersister создаёт фоновый сохранятель.
func NewPersister(store *Store, log zerolog.Logger) *Persister {
	return &Persister{store: store, log: log, requests: make(chan struct{}, 1)}
}

// Request ставит сохранение в очередь и не блокируется.
func (p *Persister) Request() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// Serve обрабатывает запросы до отмены контекста и сбрасывает состояние перед выходом.
func (p *Persister) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return ctx.Err()
		case <-p.requests:
			saveCtx, cancel := context.WithTimeout(ctx, flushTimeout)
			_ = p.store.Save(saveCtx)
			cancel()
		}
	}
}

// Flush синхронно сохраняет состояние независимо от отмены родительского контекста.
func (p *Persister) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.store.Save(ctx); err != nil {
		p.log.Error().Err(err).Msg("recency: финальное сохранение не удалось")
		return
	}
	p.log.Info().Msg("recency: состояние сохранено")
}
