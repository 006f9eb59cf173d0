package tmdb

import (
	"strings"

	"tg-movie-bot/internal/domain"
)

type movieResult struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ReleaseDate string   `json:"release_date"`
	VoteAverage *float64 `json:"vote_average"`
	Overview    string   `json:"overview"`
	PosterPath  *string  `json:"poster_path"`
}

type listResponse struct {
	Page    int           `json:"page"`
	Results []movieResult `json:"results"`
}

func (r listResponse) movies() []domain.Movie {
	out := make([]domain.Movie, 0, len(r.Results))
	for _, item := range r.Results {
		if item.ID == 0 {
			continue
		}
		movie := domain.Movie{
			ID:          item.ID,
			Title:       strings.TrimSpace(item.Title),
			ReleaseDate: item.ReleaseDate,
			Rating:      item.VoteAverage,
			Overview:    strings.TrimSpace(item.Overview),
		}
		if item.PosterPath != nil {
			movie.PosterPath = *item.PosterPath
		}
		out = append(out, movie)
	}
	return out
}

type detailResponse struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ReleaseDate string   `json:"release_date"`
	VoteAverage *float64 `json:"vote_average"`
	PosterPath  *string  `json:"poster_path"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Runtime  *int   `json:"runtime"`
	Overview string `json:"overview"`
}

func (r detailResponse) detail() domain.MovieDetail {
	d := domain.MovieDetail{
		ID:          r.ID,
		Title:       strings.TrimSpace(r.Title),
		ReleaseDate: r.ReleaseDate,
		Rating:      r.VoteAverage,
		Overview:    strings.TrimSpace(r.Overview),
	}
	if r.PosterPath != nil {
		d.PosterPath = *r.PosterPath
	}
	for _, g := range r.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			d.Genres = append(d.Genres, name)
		}
	}
	if r.Runtime != nil && *r.Runtime > 0 {
		d.Runtime = *r.Runtime
	}
	return d
}

type creditsResponse struct {
	Cast []struct {
		Name string `json:"name"`
	} `json:"cast"`
	Crew []struct {
		Name string `json:"name"`
		Job  string `json:"job"`
	} `json:"crew"`
}

func (r creditsResponse) credits() domain.Credits {
	var c domain.Credits
	for _, member := range r.Crew {
		if member.Job == "Director" && strings.TrimSpace(member.Name) != "" {
			c.Director = strings.TrimSpace(member.Name)
			break
		}
	}
	for _, actor := range r.Cast {
		if name := strings.TrimSpace(actor.Name); name != "" {
			c.Cast = append(c.Cast, name)
		}
	}
	return c
}
