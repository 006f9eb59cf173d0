package schedule

import (
	"context"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
)

// Способы доставки карточки.
const (
	KindPhoto = "photo"
	KindText  = "text"
)

// Describe запрашивает карточку и съёмочную группу. Отсутствующие данные возвращаются как nil.
func Describe(ctx context.Context, catalog domain.Catalog, movieID int64) (*domain.MovieDetail, *domain.Credits) {
	var (
		detail  *domain.MovieDetail
		credits *domain.Credits
	)
	if d, ok := catalog.Details(ctx, movieID); ok {
		detail = &d
	}
	if c, ok := catalog.Credits(ctx, movieID); ok {
		credits = &c
	}
	return detail, credits
}

// SendCard отправляет постер с подписью. Без постера или при отказе в фото отправляется текст.
func SendCard(ctx context.Context, notifier domain.Notifier, chatID int64, photoURL, text string) (string, error) {
	if photoURL != "" {
		err := notifier.SendPhoto(ctx, chatID, photoURL, text)
		metrics.ObserveDelivery(KindPhoto, err)
		if err == nil {
			return KindPhoto, nil
		}
	}
	err := notifier.SendText(ctx, chatID, text)
	metrics.ObserveDelivery(KindText, err)
	return KindText, err
}
