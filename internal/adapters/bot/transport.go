package bot

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrUpdatesClosed возвращается, если Bot API закрыл канал обновлений.
var ErrUpdatesClosed = errors.New("канал обновлений закрыт")

// UpdateSource отдаёт обновления через long polling.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller получает обновления через long polling и передаёт их обработчику.
type Poller struct {
	source  UpdateSource
	handler *Handler
	log     zerolog.Logger
	timeout int
}

// NewPoller создаёт сервис long polling. timeout задаётся в секундах.
func NewPoller(source UpdateSource, handler *Handler, log zerolog.Logger, timeout int) *Poller {
	if timeout <= 0 {
		timeout = 30
	}
	return &Poller{source: source, handler: handler, log: log, timeout: timeout}
}

// Serve читает обновления до отмены контекста. Каждый апдейт обрабатывается в своей горутине.
func (p *Poller) Serve(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.source.GetUpdatesChan(cfg)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer p.source.StopReceivingUpdates()

	p.log.Info().Msg("long polling запущен")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return ErrUpdatesClosed
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.handler.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// Webhook принимает обновления от Telegram по HTTP. Запрос подтверждается сразу,
// апдейт обрабатывается в отдельной горутине в контексте сервиса.
type Webhook struct {
	ctx     context.Context
	handler *Handler
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewWebhook создаёт HTTP-приёмник обновлений.
func NewWebhook(ctx context.Context, h *Handler, log zerolog.Logger) *Webhook {
	return &Webhook{ctx: ctx, handler: h, log: log}
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		wh.log.Warn().Err(err).Msg("не удалось разобрать апдейт")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wh.wg.Add(1)
	go func() {
		defer wh.wg.Done()
		wh.handler.HandleUpdate(wh.ctx, update)
	}()
	w.WriteHeader(http.StatusOK)
}

// Wait ждёт завершения обработки принятых апдейтов.
func (wh *Webhook) Wait() {
	wh.wg.Wait()
}

// String используется супервизором в логах.
func (p *Poller) String() string {
	return "telegram-poller"
}
