package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/usecase/caption"
	"tg-movie-bot/internal/usecase/recommend"
)

type stubRecommender struct {
	mu         sync.Mutex
	movie      domain.Movie
	err        error
	recipients []string
}

func (s *stubRecommender) Select(_ context.Context, recipient string) (domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = append(s.recipients, recipient)
	return s.movie, s.err
}

type stubCatalog struct {
	detail  *domain.MovieDetail
	credits *domain.Credits
}

func (stubCatalog) TopRated(context.Context, int) []domain.Movie   { return nil }
func (stubCatalog) Trending(context.Context) []domain.Movie        { return nil }
func (stubCatalog) Search(context.Context, string) []domain.Movie { return nil }

func (c stubCatalog) Details(context.Context, int64) (domain.MovieDetail, bool) {
	if c.detail == nil {
		return domain.MovieDetail{}, false
	}
	return *c.detail, true
}

func (c stubCatalog) Credits(context.Context, int64) (domain.Credits, bool) {
	if c.credits == nil {
		return domain.Credits{}, false
	}
	return *c.credits, true
}

type sent struct {
	chatID int64
	kind   string
	photo  string
	text   string
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []sent
	photoErr error
	textErr  error
}

func (n *recordingNotifier) SendText(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.textErr != nil {
		return n.textErr
	}
	n.messages = append(n.messages, sent{chatID: chatID, kind: KindText, text: text})
	return nil
}

func (n *recordingNotifier) SendPhoto(_ context.Context, chatID int64, photoURL, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.photoErr != nil {
		return n.photoErr
	}
	n.messages = append(n.messages, sent{chatID: chatID, kind: KindPhoto, photo: photoURL, text: text})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *recordingNotifier) last() sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return sent{}
	}
	return n.messages[len(n.messages)-1]
}

type countingPersist struct{ n atomic.Int32 }

func (p *countingPersist) Request() { p.n.Add(1) }

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 7, 0, 0, 0, time.UTC)
}

func newService(rec Recommender, catalog domain.Catalog, notifier domain.Notifier, persist SaveRequester, interval time.Duration) *Service {
	return NewService(rec, catalog, notifier, persist, zerolog.Nop(), Options{
		Interval: interval,
		Location: time.UTC,
		Now:      fixedNow,
	})
}

func mustSubscribe(t *testing.T, svc *Service, chatID int64) {
	t.Helper()
	added, err := svc.Subscribe(chatID)
	require.NoError(t, err)
	require.True(t, added)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	svc := newService(&stubRecommender{}, stubCatalog{}, &recordingNotifier{}, &countingPersist{}, time.Hour)
	defer svc.Close()

	added, err := svc.Subscribe(1)
	require.NoError(t, err)
	require.True(t, added)
	added, err = svc.Subscribe(1)
	require.NoError(t, err)
	require.False(t, added)
	require.True(t, svc.Subscribed(1))
	require.False(t, svc.Subscribed(2))

	require.True(t, svc.Unsubscribe(1))
	require.False(t, svc.Unsubscribe(1))
	require.False(t, svc.Subscribed(1))
}

func TestDeliverSendsPhotoCard(t *testing.T) {
	rating := 8.1
	rec := &stubRecommender{movie: domain.Movie{ID: 550, Title: "Бійцівський клуб", ReleaseDate: "1999-10-15", Rating: &rating, PosterURL: "https://img/550.jpg"}}
	catalog := stubCatalog{
		detail:  &domain.MovieDetail{Genres: []string{"Драма"}, Runtime: 139},
		credits: &domain.Credits{Director: "Девід Фінчер", Cast: []string{"Бред Пітт"}},
	}
	notifier := &recordingNotifier{}
	persist := &countingPersist{}
	svc := newService(rec, catalog, notifier, persist, time.Hour)
	defer svc.Close()

	require.NoError(t, svc.Deliver(context.Background(), 42))
	require.Equal(t, []string{"42"}, rec.recipients)
	msg := notifier.last()
	require.Equal(t, KindPhoto, msg.kind)
	require.Equal(t, "https://img/550.jpg", msg.photo)
	require.True(t, strings.HasPrefix(msg.text, caption.GreetingMorning))
	require.Contains(t, msg.text, "Девід Фінчер")
	require.Contains(t, msg.text, "2 год 19 хв")
	require.EqualValues(t, 1, persist.n.Load())
}

func TestDeliverFallsBackToText(t *testing.T) {
	rec := &stubRecommender{movie: domain.Movie{ID: 1, Title: "X", PosterURL: "https://img/1.jpg"}}
	notifier := &recordingNotifier{photoErr: errors.New("bad request: wrong file identifier")}
	svc := newService(rec, stubCatalog{}, notifier, &countingPersist{}, time.Hour)
	defer svc.Close()

	require.NoError(t, svc.Deliver(context.Background(), 7))
	msg := notifier.last()
	require.Equal(t, KindText, msg.kind)
	require.Contains(t, msg.text, caption.UnknownDirector)
}

func TestDeliverWithoutPosterSendsText(t *testing.T) {
	rec := &stubRecommender{movie: domain.Movie{ID: 1, Title: "X"}}
	notifier := &recordingNotifier{}
	svc := newService(rec, stubCatalog{}, notifier, &countingPersist{}, time.Hour)
	defer svc.Close()

	require.NoError(t, svc.Deliver(context.Background(), 7))
	require.Equal(t, KindText, notifier.last().kind)
}

func TestDeliverSendsNoticeWhenUnavailable(t *testing.T) {
	rec := &stubRecommender{err: recommend.ErrUnavailable}
	notifier := &recordingNotifier{}
	persist := &countingPersist{}
	svc := newService(rec, stubCatalog{}, notifier, persist, time.Hour)
	defer svc.Close()

	require.NoError(t, svc.Deliver(context.Background(), 7))
	require.Equal(t, UnavailableNotice, notifier.last().text)
	require.EqualValues(t, 1, persist.n.Load())
}

func TestDeliverPersistsEvenWhenSendFails(t *testing.T) {
	rec := &stubRecommender{movie: domain.Movie{ID: 1, Title: "X"}}
	notifier := &recordingNotifier{textErr: errors.New("forbidden: bot was blocked by the user")}
	persist := &countingPersist{}
	svc := newService(rec, stubCatalog{}, notifier, persist, time.Hour)
	defer svc.Close()

	require.Error(t, svc.Deliver(context.Background(), 7))
	require.EqualValues(t, 1, persist.n.Load())
}

func TestRecurringDeliveryStopsAfterUnsubscribe(t *testing.T) {
	rec := &stubRecommender{movie: domain.Movie{ID: 1, Title: "X"}}
	notifier := &recordingNotifier{}
	svc := newService(rec, stubCatalog{}, notifier, &countingPersist{}, 10*time.Millisecond)
	defer svc.Close()

	mustSubscribe(t, svc, 5)
	require.Eventually(t, func() bool { return notifier.count() >= 2 }, time.Second, 5*time.Millisecond)

	require.True(t, svc.Unsubscribe(5))
	time.Sleep(30 * time.Millisecond)
	settled := notifier.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, notifier.count())
}

func TestUnsubscribeLeavesOthersRunning(t *testing.T) {
	rec := &stubRecommender{movie: domain.Movie{ID: 1, Title: "X"}}
	notifier := &recordingNotifier{}
	svc := newService(rec, stubCatalog{}, notifier, &countingPersist{}, 10*time.Millisecond)
	defer svc.Close()

	mustSubscribe(t, svc, 1)
	mustSubscribe(t, svc, 2)
	require.True(t, svc.Unsubscribe(1))
	time.Sleep(30 * time.Millisecond)

	require.Eventually(t, func() bool { return notifier.last().chatID == 2 }, time.Second, 5*time.Millisecond)
	require.True(t, svc.Subscribed(2))
}

func TestServeClosesSubscriptions(t *testing.T) {
	svc := newService(&stubRecommender{}, stubCatalog{}, &recordingNotifier{}, &countingPersist{}, time.Hour)
	mustSubscribe(t, svc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve не завершился после отмены контекста")
	}
	require.False(t, svc.Subscribed(1))
	added, err := svc.Subscribe(2)
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, added)
}

func TestSubscribeAfterCloseIsDistinct(t *testing.T) {
	svc := newService(&stubRecommender{}, stubCatalog{}, &recordingNotifier{}, &countingPersist{}, time.Hour)
	mustSubscribe(t, svc, 1)
	svc.Close()

	// Повторная подписка после остановки не должна выглядеть как «уже подписан».
	added, err := svc.Subscribe(1)
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, added)
	require.False(t, svc.Subscribed(1))
}

func TestLoadLocationNormalizes(t *testing.T) {
	loc, err := LoadLocation(" europe/kyiv ")
	require.NoError(t, err)
	require.Equal(t, "Europe/Kyiv", loc.String())

	loc, err = LoadLocation("america/new york")
	require.NoError(t, err)
	require.Equal(t, "America/New_York", loc.String())

	_, err = LoadLocation("")
	require.ErrorIs(t, err, ErrInvalidTimezone)
	_, err = LoadLocation("Mars/Olympus")
	require.ErrorIs(t, err, ErrInvalidTimezone)
}
