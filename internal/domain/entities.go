package domain

import "strings"

// DefaultPosterBaseURL — префикс для построения ссылки на постер TMDB.
const DefaultPosterBaseURL = "https://image.tmdb.org/t/p/w500"

// Movie описывает фильм из каталога. Не сохраняется, каждый раз берётся из каталога заново.
type Movie struct {
	ID          int64
	Title       string
	ReleaseDate string
	Rating      *float64
	Overview    string
	PosterPath  string
	PosterURL   string
}

// Year возвращает год выхода или пустую строку, если дата неизвестна.
func (m Movie) Year() string {
	date := strings.TrimSpace(m.ReleaseDate)
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// WithPoster проставляет ссылку на постер, если у фильма есть путь к изображению.
func (m Movie) WithPoster(base string) Movie {
	if m.PosterPath == "" {
		m.PosterURL = ""
		return m
	}
	if base == "" {
		base = DefaultPosterBaseURL
	}
	m.PosterURL = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(m.PosterPath, "/")
	return m
}

// MovieDetail содержит расширенную карточку фильма.
type MovieDetail struct {
	ID          int64
	Title       string
	ReleaseDate string
	Rating      *float64
	PosterPath  string
	Genres      []string
	Runtime     int
	Overview    string
}

// Movie сводит карточку к краткому описанию фильма.
func (d MovieDetail) Movie() Movie {
	return Movie{
		ID:          d.ID,
		Title:       d.Title,
		ReleaseDate: d.ReleaseDate,
		Rating:      d.Rating,
		Overview:    d.Overview,
		PosterPath:  d.PosterPath,
	}
}

// Credits содержит съёмочную группу фильма.
type Credits struct {
	Director string
	Cast     []string
}
