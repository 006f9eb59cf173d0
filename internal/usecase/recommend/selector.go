package recommend

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
	"tg-movie-bot/internal/usecase/recency"
)

// ErrUnavailable возвращается, когда за отведённое число попыток не удалось подобрать фильм.
var ErrUnavailable = errors.New("каталог временно недоступен")

const (
	defaultMaxAttempts = 10
	firstPage          = 1
	// Второй возврат к первой странице за один подбор означает, что получатель видел весь список.
	maxWraps = 2
)

// RankedSource отдаёт постраничный рейтинговый список.
type RankedSource interface {
	TopRated(ctx context.Context, page int) []domain.Movie
}

// Options настраивает подбор.
type Options struct {
	// MaxAttempts ограничивает число пустых ответов первой страницы за один подбор.
	MaxAttempts int
	// MaxAdvances ограничивает переходы через просмотренные страницы за один подбор.
	// По умолчанию MaxHistory+1: каждая полностью просмотренная страница содержит хотя бы один id из истории.
	MaxAdvances int
	// RetryDelay — пауза после пустой первой страницы (каталог, скорее всего, недоступен).
	RetryDelay time.Duration
	// PosterBaseURL — префикс ссылок на постеры.
	PosterBaseURL string
	// Rand задаёт источник случайности; по умолчанию засевается текущим временем.
	Rand *rand.Rand
}

// Selector подбирает получателю фильм, который он ещё не видел, обходя рейтинговый
// список постранично. Курсор страниц общий для всех получателей.
type Selector struct {
	catalog     RankedSource
	store       *recency.Store
	log         zerolog.Logger
	attempts    int
	maxAdvances int
	retryDelay  time.Duration
	posterBase  string

	mu   sync.Mutex
	page int
	rnd  *rand.Rand
}

// NewSelector создаёт подборщик.
func NewSelector(catalog RankedSource, store *recency.Store, log zerolog.Logger, opts Options) *Selector {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	maxAdvances := opts.MaxAdvances
	if maxAdvances <= 0 {
		maxAdvances = store.MaxHistory() + 1
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	metrics.SetPageCursor(firstPage)
	return &Selector{
		catalog:     catalog,
		store:       store,
		log:         log,
		attempts:    attempts,
		maxAdvances: maxAdvances,
		retryDelay:  opts.RetryDelay,
		posterBase:  opts.PosterBaseURL,
		page:        firstPage,
		rnd:         rnd,
	}
}

// Page возвращает текущее значение курсора.
func (s *Selector) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Select возвращает фильм, которого нет в истории получателя, и записывает его в историю.
// Запрос страницы выполняется без блокировки; фильтрация, выбор и запись идут под одной блокировкой.
// Пустая первая страница считается сбоем каталога и расходует попытку. Переходы через
// просмотренные страницы ограничены отдельно: не больше maxAdvances и не больше одного
// полного круга по списку.
func (s *Selector) Select(ctx context.Context, recipient string) (domain.Movie, error) {
	var failures, advances, wraps int
	for {
		if err := ctx.Err(); err != nil {
			return domain.Movie{}, err
		}
		page := s.Page()
		movies := s.catalog.TopRated(ctx, page)
		if len(movies) == 0 {
			if page == firstPage {
				failures++
				s.log.Info().Int("attempt", failures).Msg("recommend: пустая первая страница")
				if failures >= s.attempts {
					return s.unavailable(recipient, "catalog")
				}
				if err := s.wait(ctx); err != nil {
					return domain.Movie{}, err
				}
				continue
			}
			s.log.Info().Int("page", page).Msg("recommend: пустая страница, возвращаемся к первой")
			s.resetCursor(page)
			wraps++
			advances++
			if wraps >= maxWraps || advances > s.maxAdvances {
				return s.unavailable(recipient, "exhausted")
			}
			continue
		}

		movie, ok := s.pick(recipient, page, movies)
		if !ok {
			s.log.Debug().Int("page", page).Str("recipient", recipient).Msg("recommend: все фильмы страницы уже показаны")
			advances++
			if advances > s.maxAdvances {
				return s.unavailable(recipient, "exhausted")
			}
			continue
		}
		metrics.ObserveRecommendation("selected")
		return movie.WithPoster(s.posterBase), nil
	}
}

func (s *Selector) unavailable(recipient, reason string) (domain.Movie, error) {
	metrics.ObserveRecommendation("unavailable")
	s.log.Warn().Str("recipient", recipient).Str("reason", reason).Msg("recommend: подходящий фильм не найден")
	return domain.Movie{}, ErrUnavailable
}

func (s *Selector) pick(recipient string, page int, movies []domain.Movie) (domain.Movie, bool) {
	ids := make([]int64, 0, len(movies))
	byID := make(map[int64]domain.Movie, len(movies))
	for _, m := range movies {
		if _, dup := byID[m.ID]; dup {
			continue
		}
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	unseen := s.store.Unseen(recipient, ids)
	if len(unseen) == 0 {
		// Страница могла уже смениться из-за другого получателя.
		if s.page == page {
			s.page++
			metrics.SetPageCursor(s.page)
			metrics.IncPageMove("exhausted")
		}
		return domain.Movie{}, false
	}
	chosen := byID[unseen[s.rnd.Intn(len(unseen))]]
	s.store.Record(recipient, chosen.ID)
	return chosen, true
}

func (s *Selector) resetCursor(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != page || s.page == firstPage {
		return
	}
	s.page = firstPage
	metrics.SetPageCursor(s.page)
	metrics.IncPageMove("reset")
}

func (s *Selector) wait(ctx context.Context) error {
	if s.retryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
