package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
)

// ErrCaptionTooLong возвращается, если подпись не помещается под фото.
var ErrCaptionTooLong = errors.New("caption exceeds telegram limit")

// Sender — часть tgbotapi.BotAPI, нужная для отправки сообщений.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier доставляет сообщения через Bot API.
type Notifier struct {
	bot     Sender
	log     zerolog.Logger
	timeout time.Duration
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт канал доставки. timeout ограничивает каждый вызов Bot API.
func NewNotifier(bot Sender, log zerolog.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Notifier{bot: bot, log: log, timeout: timeout}
}

// SendText отправляет HTML-текст, разбивая его на части по лимиту Telegram.
func (n *Notifier) SendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if err := n.send(ctx, "send_message", chatID, msg); err != nil {
			return err
		}
	}
	return nil
}

// SendPhoto отправляет постер по ссылке с HTML-подписью.
func (n *Notifier) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	if !FitsCaption(caption) {
		return ErrCaptionTooLong
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	return n.send(ctx, "send_photo", chatID, photo)
}

func (n *Notifier) send(ctx context.Context, operation string, chatID int64, c tgbotapi.Chattable) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := n.bot.Send(c)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	metrics.ObserveNetworkRequest("telegram_bot", operation, "bot_api", start, err)
	if err != nil {
		n.log.Error().Err(err).Int64("chat", chatID).Str("operation", operation).Msg("не удалось отправить сообщение")
	}
	return err
}
