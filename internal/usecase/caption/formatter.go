package caption

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"tg-movie-bot/internal/domain"
)

const (
	maxGenres = 5
	maxCast   = 4
)

// Приветствия по времени суток получателя.
const (
	GreetingMorning = "Раночку!🤗 Щоб прокинутись подивись:"
	GreetingMidday  = "А хто це дурня клеїть?🙃 Щоб провести час з користю✊ я знайшов для тебе:"
	GreetingEvening = "Вже вечір! Час відпочити🍿:"
	GreetingNight   = "Навіщо спати?😴 Краще подивись:"
)

// Заглушки для отсутствующих полей.
const (
	UnknownYear     = "?"
	UnknownRating   = "?"
	UnknownGenre    = "Невідомий жанр"
	UnknownDirector = "Режисер невідомий"
	NoCast          = "Інформація про акторів відсутня"
	UnknownRuntime  = "Тривалість невідома"
	NoOverview      = "Опис відсутній"
)

// Greeting выбирает приветствие по часу: [6,11] утро, [12,16] день, [17,22] вечер, иначе ночь.
func Greeting(now time.Time) string {
	hour := now.Hour()
	switch {
	case hour >= 6 && hour <= 11:
		return GreetingMorning
	case hour >= 12 && hour <= 16:
		return GreetingMidday
	case hour >= 17 && hour <= 22:
		return GreetingEvening
	default:
		return GreetingNight
	}
}

// Render собирает HTML-подпись к рекомендации. Все поля присутствуют всегда:
// вместо отсутствующих данных подставляются заглушки.
func Render(movie domain.Movie, detail *domain.MovieDetail, credits *domain.Credits, now time.Time) string {
	return strings.Join([]string{
		escapeHTML(Greeting(now)),
		Card(movie, detail, credits),
	}, "\n\n")
}

// Card формирует карточку фильма без приветствия.
func Card(movie domain.Movie, detail *domain.MovieDetail, credits *domain.Credits) string {
	var genres []string
	var runtime int
	overview := strings.TrimSpace(movie.Overview)
	if detail != nil {
		genres = filterNonEmptyStrings(detail.Genres)
		runtime = detail.Runtime
		if overview == "" {
			overview = strings.TrimSpace(detail.Overview)
		}
	}
	var director string
	var cast []string
	if credits != nil {
		director = strings.TrimSpace(credits.Director)
		cast = filterNonEmptyStrings(credits.Cast)
	}

	year := movie.Year()
	if year == "" {
		year = UnknownYear
	}
	title := strings.TrimSpace(movie.Title)

	sections := []string{
		fmt.Sprintf("<b>%s</b> (%s)", escapeHTML(title), escapeHTML(year)),
		fmt.Sprintf("⭐ Рейтинг: <b>%s/10</b>", FormatRating(movie.Rating)),
		fmt.Sprintf("🎭 Жанр: <b>%s</b>", escapeHTML(joinCapped(genres, maxGenres, UnknownGenre))),
		fmt.Sprintf("🎬 Режисер: <b>%s</b>", escapeHTML(orPlaceholder(director, UnknownDirector))),
		fmt.Sprintf("👥 Актори: <b>%s</b>", escapeHTML(joinCapped(cast, maxCast, NoCast))),
		fmt.Sprintf("⏱ Тривалість: <b>%s</b>", escapeHTML(FormatRuntime(runtime))),
		"📝 " + escapeHTML(orPlaceholder(overview, NoOverview)),
	}
	return strings.Join(sections, "\n\n")
}

// FormatRating печатает оценку с одним знаком после запятой или заглушку.
func FormatRating(rating *float64) string {
	if rating == nil {
		return UnknownRating
	}
	return strconv.FormatFloat(*rating, 'f', 1, 64)
}

// FormatRuntime печатает продолжительность как «H год M хв» или «M хв».
func FormatRuntime(minutes int) string {
	switch {
	case minutes <= 0:
		return UnknownRuntime
	case minutes >= 60:
		return fmt.Sprintf("%d год %d хв", minutes/60, minutes%60)
	default:
		return fmt.Sprintf("%d хв", minutes)
	}
}

// ListLine формирует строку списка для трендов и поиска.
func ListLine(idx int, movie domain.Movie) string {
	year := movie.Year()
	if year == "" {
		year = UnknownYear
	}
	return fmt.Sprintf("%d. <b>%s</b> (%s) ⭐ %s — /movie %d",
		idx, escapeHTML(strings.TrimSpace(movie.Title)), escapeHTML(year), FormatRating(movie.Rating), movie.ID)
}

func joinCapped(values []string, limit int, placeholder string) string {
	if len(values) == 0 {
		return placeholder
	}
	if len(values) > limit {
		values = values[:limit]
	}
	return strings.Join(values, ", ")
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}

func filterNonEmptyStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
