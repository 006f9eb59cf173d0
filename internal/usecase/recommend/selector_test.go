package recommend

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/state"
	"tg-movie-bot/internal/usecase/recency"
)

type stubCatalog struct {
	mu    sync.Mutex
	pages map[int][]domain.Movie
	calls []int
}

func (s *stubCatalog) TopRated(_ context.Context, page int) []domain.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, page)
	return s.pages[page]
}

func (s *stubCatalog) requested() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

func movies(ids ...int64) []domain.Movie {
	out := make([]domain.Movie, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Movie{ID: id, Title: "movie", PosterPath: "/p.jpg"})
	}
	return out
}

func newSelector(catalog RankedSource, store *recency.Store, seed int64, attempts int) *Selector {
	return NewSelector(catalog, store, zerolog.Nop(), Options{
		MaxAttempts:   attempts,
		PosterBaseURL: "https://img.test",
		Rand:          rand.New(rand.NewSource(seed)),
	})
}

func newStore() *recency.Store {
	return recency.NewStore(&state.Memory{}, 100, zerolog.Nop())
}

func TestSelectEndToEnd(t *testing.T) {
	catalog := &stubCatalog{pages: map[int][]domain.Movie{
		1: movies(7, 8),
		2: movies(9, 10),
	}}
	store := newStore()
	sel := newSelector(catalog, store, 1, 10)
	ctx := context.Background()

	first, err := sel.Select(ctx, "42")
	require.NoError(t, err)
	require.Contains(t, []int64{7, 8}, first.ID)
	require.Equal(t, []int64{first.ID}, store.Get("42"))
	require.Equal(t, "https://img.test/p.jpg", first.PosterURL)

	second, err := sel.Select(ctx, "42")
	require.NoError(t, err)
	require.Contains(t, []int64{7, 8}, second.ID)
	require.NotEqual(t, first.ID, second.ID)

	third, err := sel.Select(ctx, "42")
	require.NoError(t, err)
	require.Contains(t, []int64{9, 10}, third.ID)
	require.Equal(t, 2, sel.Page())
}

func TestSelectIsSeedDeterministic(t *testing.T) {
	pick := func() int64 {
		catalog := &stubCatalog{pages: map[int][]domain.Movie{1: movies(1, 2, 3, 4, 5, 6, 7, 8)}}
		m, err := newSelector(catalog, newStore(), 99, 5).Select(context.Background(), "r")
		require.NoError(t, err)
		return m.ID
	}
	require.Equal(t, pick(), pick())
}

func TestSelectWrapsToFirstPageOnEmptyPage(t *testing.T) {
	catalog := &stubCatalog{pages: map[int][]domain.Movie{
		1: movies(1, 2),
		2: movies(3),
	}}
	store := newStore()
	sel := newSelector(catalog, store, 7, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := sel.Select(ctx, "a")
		require.NoError(t, err)
	}
	// Третий подбор исчерпал первую страницу и перешёл на вторую.
	require.Len(t, catalog.requested(), 4)

	// Получателю "a" показано всё: после одного полного круга подбор прекращается.
	_, err := sel.Select(ctx, "a")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, []int{2, 3, 1, 2, 3}, catalog.requested()[4:])
	require.Equal(t, 1, sel.Page())

	m, err := sel.Select(ctx, "b")
	require.NoError(t, err)
	require.Contains(t, []int64{1, 2}, m.ID)
}

func TestSelectPageWrapTerminates(t *testing.T) {
	catalog := &stubCatalog{pages: map[int][]domain.Movie{1: movies(1)}}
	store := newStore()
	sel := newSelector(catalog, store, 3, 4)
	ctx := context.Background()

	_, err := sel.Select(ctx, "a")
	require.NoError(t, err)
	// Для "a" первая страница исчерпана: курсор уходит на пустую вторую.
	_, err = sel.Select(ctx, "a")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, sel.Page())

	m, err := sel.Select(ctx, "b")
	require.NoError(t, err)
	require.EqualValues(t, 1, m.ID)
}

func TestSelectSkipsMoreSeenPagesThanAttempts(t *testing.T) {
	pages := make(map[int][]domain.Movie)
	for p := 1; p <= 12; p++ {
		base := int64(p * 10)
		pages[p] = movies(base, base+1)
	}
	catalog := &stubCatalog{pages: pages}
	store := newStore()
	for p := 1; p <= 11; p++ {
		for _, m := range pages[p] {
			require.True(t, store.Record("veteran", m.ID))
		}
	}
	sel := newSelector(catalog, store, 2, 0)

	m, err := sel.Select(context.Background(), "veteran")
	require.NoError(t, err)
	require.Contains(t, []int64{120, 121}, m.ID)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, catalog.requested())
	require.Equal(t, 12, sel.Page())
}

func TestSelectAdvanceLimit(t *testing.T) {
	pages := make(map[int][]domain.Movie)
	for p := 1; p <= 6; p++ {
		pages[p] = movies(int64(p))
	}
	catalog := &stubCatalog{pages: pages}
	store := newStore()
	for p := int64(1); p <= 5; p++ {
		store.Record("a", p)
	}
	sel := NewSelector(catalog, store, zerolog.Nop(), Options{MaxAdvances: 3, Rand: rand.New(rand.NewSource(1))})

	_, err := sel.Select(context.Background(), "a")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, []int{1, 2, 3, 4}, catalog.requested())
}

func TestSelectReturnsUnavailableWhenCatalogDown(t *testing.T) {
	catalog := &stubCatalog{pages: map[int][]domain.Movie{}}
	sel := newSelector(catalog, newStore(), 1, 3)
	_, err := sel.Select(context.Background(), "42")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, []int{1, 1, 1}, catalog.requested())
}

func TestSelectHonoursContext(t *testing.T) {
	catalog := &stubCatalog{pages: map[int][]domain.Movie{}}
	sel := NewSelector(catalog, newStore(), zerolog.Nop(), Options{MaxAttempts: 3, RetryDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sel.Select(ctx, "42")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelectNeverRepeatsUntilEvicted(t *testing.T) {
	catalog := &stubCatalog{pages: map[int][]domain.Movie{
		1: movies(1, 2, 3, 4),
		2: movies(5, 6, 7, 8),
	}}
	store := newStore()
	sel := newSelector(catalog, store, 11, 10)
	seen := make(map[int64]bool)
	for i := 0; i < 8; i++ {
		m, err := sel.Select(context.Background(), "42")
		require.NoError(t, err)
		require.False(t, seen[m.ID], "фильм %d показан повторно", m.ID)
		seen[m.ID] = true
	}
	require.Len(t, store.Get("42"), 8)
}

func TestSelectConcurrentRecipientsDoNotRepeat(t *testing.T) {
	pages := make(map[int][]domain.Movie)
	for p := 1; p <= 5; p++ {
		base := int64(p * 100)
		pages[p] = movies(base, base+1, base+2, base+3)
	}
	catalog := &stubCatalog{pages: pages}
	store := newStore()
	sel := newSelector(catalog, store, 5, 20)

	recipients := []string{"a", "b", "c"}
	var wg sync.WaitGroup
	for _, r := range recipients {
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()
			for i := 0; i < 6; i++ {
				_, _ = sel.Select(context.Background(), recipient)
			}
		}(r)
	}
	wg.Wait()

	for _, r := range recipients {
		history := store.Get(r)
		unique := make(map[int64]struct{}, len(history))
		for _, id := range history {
			unique[id] = struct{}{}
		}
		require.Len(t, unique, len(history), "повтор в истории %s", r)
	}
}
