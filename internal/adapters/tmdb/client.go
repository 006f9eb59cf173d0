package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "uk-UA"
	defaultTimeout  = 20 * time.Second
	breakerName     = "tmdb"
)

// Config описывает подключение к TMDB.
type Config struct {
	BaseURL  string
	Token    string
	Language string
	Timeout  time.Duration
	RPS      float64
}

// Client выполняет запросы к TMDB API. Ошибки не пробрасываются наружу:
// методы каталога возвращают пустой результат и пишут причину в лог.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	language string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	log      zerolog.Logger
}

var _ domain.Catalog = (*Client)(nil)

// StatusError возвращается при ответе TMDB с кодом не 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: status %d: %s", e.Code, e.Body)
}

// NewClient создаёт клиента TMDB.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := cfg.Language
	if language == "" {
		language = defaultLanguage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < 500 && statusErr.Code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("tmdb: предохранитель сменил состояние")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		token:    cfg.Token,
		language: language,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  breaker,
		log:      log,
	}
}

// TopRated возвращает страницу списка лучших фильмов.
func (c *Client) TopRated(ctx context.Context, page int) []domain.Movie {
	if page < 1 {
		page = 1
	}
	params := url.Values{"page": {strconv.Itoa(page)}}
	var resp listResponse
	if err := c.getJSON(ctx, "top_rated", "/movie/top_rated", params, &resp); err != nil {
		c.log.Warn().Err(err).Int("page", page).Msg("tmdb: не удалось получить рейтинговый список")
		return nil
	}
	return resp.movies()
}

// Trending возвращает фильмы в тренде за день.
func (c *Client) Trending(ctx context.Context) []domain.Movie {
	var resp listResponse
	if err := c.getJSON(ctx, "trending", "/trending/movie/day", nil, &resp); err != nil {
		c.log.Warn().Err(err).Msg("tmdb: не удалось получить тренды")
		return nil
	}
	return resp.movies()
}

// Search ищет фильмы по названию.
func (c *Client) Search(ctx context.Context, query string) []domain.Movie {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	params := url.Values{
		"query":         {query},
		"include_adult": {"false"},
		"page":          {"1"},
	}
	var resp listResponse
	if err := c.getJSON(ctx, "search", "/search/movie", params, &resp); err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("tmdb: поиск не удался")
		return nil
	}
	return resp.movies()
}

// Details возвращает карточку фильма: название, жанры, продолжительность и описание.
func (c *Client) Details(ctx context.Context, movieID int64) (domain.MovieDetail, bool) {
	var resp detailResponse
	path := fmt.Sprintf("/movie/%d", movieID)
	if err := c.getJSON(ctx, "details", path, nil, &resp); err != nil {
		c.log.Warn().Err(err).Int64("movie", movieID).Msg("tmdb: не удалось получить карточку фильма")
		return domain.MovieDetail{}, false
	}
	return resp.detail(), true
}

// Credits возвращает режиссёра и актёров фильма.
func (c *Client) Credits(ctx context.Context, movieID int64) (domain.Credits, bool) {
	var resp creditsResponse
	path := fmt.Sprintf("/movie/%d/credits", movieID)
	if err := c.getJSON(ctx, "credits", path, nil, &resp); err != nil {
		c.log.Warn().Err(err).Int64("movie", movieID).Msg("tmdb: не удалось получить съёмочную группу")
		return domain.Credits{}, false
	}
	return resp.credits(), true
}

func (c *Client) getJSON(ctx context.Context, operation, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	query := url.Values{}
	for key, values := range params {
		query[key] = values
	}
	query.Set("language", c.language)
	endpoint := c.baseURL + path + "?" + query.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, operation, endpoint)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", operation, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("tmdb", operation, "api.themoviedb.org", start, err)
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		metrics.ObserveNetworkRequest("tmdb", operation, "api.themoviedb.org", start, statusErr)
		return nil, statusErr
	}
	data, err := io.ReadAll(resp.Body)
	metrics.ObserveNetworkRequest("tmdb", operation, "api.themoviedb.org", start, err)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
