package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
	"tg-movie-bot/internal/usecase/caption"
	"tg-movie-bot/internal/usecase/recommend"
)

// UnavailableNotice отправляется, когда каталог не отдал ни одного фильма.
const UnavailableNotice = "Каталог фільмів зараз недоступний 😔 Спробую ще раз пізніше."

const defaultInterval = 6 * time.Hour

// ErrClosed возвращается при подписке после остановки расписания.
var ErrClosed = errors.New("расписание остановлено")

// Recommender подбирает фильм для получателя.
type Recommender interface {
	Select(ctx context.Context, recipient string) (domain.Movie, error)
}

// SaveRequester ставит сохранение истории в очередь.
type SaveRequester interface {
	Request()
}

// Options настраивает расписание.
type Options struct {
	Interval time.Duration
	Location *time.Location
	Now      func() time.Time
}

// Service ведёт периодические рассылки рекомендаций. Подписки живут только в памяти.
type Service struct {
	selector Recommender
	catalog  domain.Catalog
	notifier domain.Notifier
	persist  SaveRequester
	log      zerolog.Logger
	interval time.Duration
	loc      *time.Location
	now      func() time.Time

	mu     sync.Mutex
	subs   map[int64]context.CancelFunc
	root   context.Context
	stop   context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewService создаёт планировщик.
func NewService(selector Recommender, catalog domain.Catalog, notifier domain.Notifier, persist SaveRequester, log zerolog.Logger, opts Options) *Service {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	root, stop := context.WithCancel(context.Background())
	return &Service{
		selector: selector,
		catalog:  catalog,
		notifier: notifier,
		persist:  persist,
		log:      log.With().Str("component", "schedule").Logger(),
		interval: interval,
		loc:      loc,
		now:      now,
		subs:     make(map[int64]context.CancelFunc),
		root:     root,
		stop:     stop,
	}
}

// RecipientKey переводит идентификатор чата в ключ истории.
func RecipientKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Subscribe запускает периодическую рассылку. Возвращает false, если получатель уже подписан,
// и ErrClosed после Close. Первая рекомендация приходит через один интервал.
func (s *Service) Subscribe(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if _, ok := s.subs[chatID]; ok {
		return false, nil
	}
	ctx, cancel := context.WithCancel(s.root)
	s.subs[chatID] = cancel
	metrics.ActiveSubscriptions.Set(float64(len(s.subs)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, chatID)
	}()
	s.log.Info().Int64("chat", chatID).Dur("interval", s.interval).Msg("подписка оформлена")
	return true, nil
}

// Unsubscribe останавливает рассылку только для этого получателя.
func (s *Service) Unsubscribe(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.subs[chatID]
	if !ok {
		return false
	}
	cancel()
	delete(s.subs, chatID)
	metrics.ActiveSubscriptions.Set(float64(len(s.subs)))
	s.log.Info().Int64("chat", chatID).Msg("подписка отменена")
	return true
}

// Subscribed сообщает, активна ли подписка.
func (s *Service) Subscribed(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[chatID]
	return ok
}

// Serve работает до отмены контекста, затем останавливает все подписки.
func (s *Service) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Close()
	return ctx.Err()
}

// Close отменяет все подписки и ждёт завершения текущих рассылок.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stop()
	s.subs = make(map[int64]context.CancelFunc)
	s.mu.Unlock()

	s.wg.Wait()
	metrics.ActiveSubscriptions.Set(0)
}

func (s *Service) run(ctx context.Context, chatID int64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Deliver(ctx, chatID); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Int64("chat", chatID).Msg("рассылка не удалась")
			}
		}
	}
}

// Deliver выполняет одну рассылку: подбор, карточка, отправка. Сохранение истории
// запрашивается при любом исходе.
func (s *Service) Deliver(ctx context.Context, chatID int64) error {
	log := s.log.With().Str("delivery_id", uuid.NewString()).Int64("chat", chatID).Logger()
	defer s.persist.Request()

	movie, err := s.selector.Select(ctx, RecipientKey(chatID))
	if err != nil {
		if !errors.Is(err, recommend.ErrUnavailable) {
			return fmt.Errorf("подбор фильма: %w", err)
		}
		log.Warn().Msg("каталог недоступен, отправляем уведомление")
		sendErr := s.notifier.SendText(ctx, chatID, UnavailableNotice)
		metrics.ObserveDelivery("notice", sendErr)
		if sendErr != nil {
			return fmt.Errorf("уведомление о недоступности: %w", sendErr)
		}
		return nil
	}

	detail, credits := Describe(ctx, s.catalog, movie.ID)
	text := caption.Render(movie, detail, credits, s.now().In(s.loc))
	kind, err := SendCard(ctx, s.notifier, chatID, movie.PosterURL, text)
	if err != nil {
		return fmt.Errorf("отправка рекомендации %d: %w", movie.ID, err)
	}
	log.Info().Int64("movie", movie.ID).Str("kind", kind).Msg("рекомендация отправлена")
	return nil
}
