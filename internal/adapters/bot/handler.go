package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-movie-bot/internal/adapters/telegram"
	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
	"tg-movie-bot/internal/usecase/caption"
	"tg-movie-bot/internal/usecase/schedule"
)

const listLimit = 10

// API — методы Bot API, которые использует обработчик.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Scheduler управляет подписками на рассылку.
type Scheduler interface {
	Subscribe(chatID int64) (bool, error)
	Unsubscribe(chatID int64) bool
	Subscribed(chatID int64) bool
	Deliver(ctx context.Context, chatID int64) error
}

// History сбрасывает историю показанных фильмов.
type History interface {
	Reset(recipient string)
}

// SaveRequester ставит сохранение истории в очередь.
type SaveRequester interface {
	Request()
}

// Options настраивает тексты обработчика.
type Options struct {
	Interval      time.Duration
	PosterBaseURL string
}

// Handler обрабатывает команды бота.
type Handler struct {
	bot        API
	notifier   domain.Notifier
	catalog    domain.Catalog
	scheduler  Scheduler
	history    History
	persist    SaveRequester
	log        zerolog.Logger
	interval   time.Duration
	posterBase string
}

// NewHandler создаёт обработчик.
func NewHandler(bot API, notifier domain.Notifier, catalog domain.Catalog, scheduler Scheduler, history History, persist SaveRequester, log zerolog.Logger, opts Options) *Handler {
	return &Handler{
		bot:        bot,
		notifier:   notifier,
		catalog:    catalog,
		scheduler:  scheduler,
		history:    history,
		persist:    persist,
		log:        log.With().Str("component", "bot").Logger(),
		interval:   opts.Interval,
		posterBase: opts.PosterBaseURL,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil && upd.Message.Chat != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "/") {
		h.handleSearch(ctx, chatID, text)
		return
	}
	command, args := parseCommand(text)
	switch command {
	case "start":
		h.handleStart(chatID)
	case "stop":
		h.handleStop(chatID)
	case "reset":
		h.handleReset(chatID)
	case "trending":
		h.handleTrending(ctx, chatID)
	case "search":
		if args == "" {
			h.reply(chatID, "Напиши, що шукати: /search Інтерстеллар", nil)
			return
		}
		h.handleSearch(ctx, chatID, args)
	case "movie":
		h.handleMovie(ctx, chatID, args)
	case "now":
		h.handleNow(ctx, chatID)
	case "help":
		h.reply(chatID, h.buildHelpMessage(), mainKeyboard())
	default:
		h.reply(chatID, "Невідома команда. Спробуй /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID := cb.Message.Chat.ID
		switch {
		case cb.Data == "now":
			h.handleNow(ctx, chatID)
		case cb.Data == "trending":
			h.handleTrending(ctx, chatID)
		case cb.Data == "stop":
			h.handleStop(chatID)
		case cb.Data == "help_menu":
			h.reply(chatID, h.buildHelpMessage(), mainKeyboard())
		case strings.HasPrefix(cb.Data, "movie:"):
			h.handleMovie(ctx, chatID, strings.TrimPrefix(cb.Data, "movie:"))
		}
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "bot_api", start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleStart(chatID int64) {
	added, err := h.scheduler.Subscribe(chatID)
	if err != nil {
		h.log.Warn().Err(err).Int64("chat", chatID).Msg("подписка отклонена")
		if errors.Is(err, schedule.ErrClosed) {
			h.reply(chatID, "Бот зараз перезапускається 🔄 Надішли /start трохи пізніше.", nil)
			return
		}
		h.reply(chatID, "Не вдалося оформити підписку. Спробуй пізніше.", nil)
		return
	}
	if !added {
		h.reply(chatID, "Ти вже підписаний на рекомендації 😉 Щоб отримати фільм просто зараз, натисни /now.", mainKeyboard())
		return
	}
	h.reply(chatID, h.buildStartMessage(), mainKeyboard())
}

func (h *Handler) handleStop(chatID int64) {
	if !h.scheduler.Unsubscribe(chatID) {
		h.reply(chatID, "Розсилка і так вимкнена. Увімкнути: /start", nil)
		return
	}
	h.reply(chatID, "Розсилку зупинено. Повернутися можна командою /start 👋", nil)
}

func (h *Handler) handleReset(chatID int64) {
	h.history.Reset(schedule.RecipientKey(chatID))
	h.persist.Request()
	h.log.Info().Int64("chat", chatID).Msg("история рекомендаций сброшена")
	h.reply(chatID, "Історію рекомендацій очищено. Фільми можуть повторюватися з початку списку.", nil)
}

func (h *Handler) handleTrending(ctx context.Context, chatID int64) {
	movies := h.catalog.Trending(ctx)
	if len(movies) == 0 {
		h.reply(chatID, schedule.UnavailableNotice, nil)
		return
	}
	h.reply(chatID, buildList("🔥 Популярне сьогодні:", movies), nil)
}

func (h *Handler) handleSearch(ctx context.Context, chatID int64, query string) {
	movies := h.catalog.Search(ctx, query)
	if len(movies) == 0 {
		h.reply(chatID, fmt.Sprintf("Нічого не знайдено за запитом «%s» 🤷", html.EscapeString(query)), nil)
		return
	}
	h.reply(chatID, buildList(fmt.Sprintf("🔎 Результати за запитом «%s»:", html.EscapeString(query)), movies), nil)
}

func (h *Handler) handleMovie(ctx context.Context, chatID int64, raw string) {
	movieID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || movieID <= 0 {
		h.reply(chatID, "Вкажи номер фільму, наприклад /movie 550", nil)
		return
	}
	detail, credits := schedule.Describe(ctx, h.catalog, movieID)
	if detail == nil {
		h.reply(chatID, "Не вдалося знайти фільм. Перевір номер або спробуй пізніше.", nil)
		return
	}
	movie := detail.Movie().WithPoster(h.posterBase)
	text := caption.Card(movie, detail, credits)
	if _, err := schedule.SendCard(ctx, h.notifier, chatID, movie.PosterURL, text); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Int64("movie", movieID).Msg("не удалось отправить карточку фильма")
	}
}

func (h *Handler) handleNow(ctx context.Context, chatID int64) {
	if err := h.scheduler.Deliver(ctx, chatID); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось выполнить внеочередную рассылку")
	}
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", "bot_api", start, err)
		if err != nil {
			h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎬 Фільм зараз", "now"),
			tgbotapi.NewInlineKeyboardButtonData("🔥 У тренді", "trending"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Допомога", "help_menu"),
			tgbotapi.NewInlineKeyboardButtonData("🔕 Зупинити", "stop"),
		),
	)
	return &buttons
}

func (h *Handler) buildStartMessage() string {
	lines := []string{
		"👋 Привіт! Я кіно-бот.",
		"",
		fmt.Sprintf("Кожні %s я надсилатиму тобі фільм, який ти ще не бачив від мене.", formatInterval(h.interval)),
		"Хочеш одразу? Тисни «🎬 Фільм зараз» або /now.",
		"",
		"Усі команди: /help",
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage() string {
	sections := []string{
		"📖 Команди:",
		"",
		"• /start — підписатися на регулярні рекомендації.",
		"• /stop — зупинити розсилку.",
		"• /now — отримати рекомендацію просто зараз.",
		"• /trending — популярні фільми сьогодні.",
		"• /search Дюна — знайти фільм за назвою (або просто напиши назву).",
		"• /movie 550 — картка фільму за номером зі списку.",
		"• /reset — очистити історію рекомендацій.",
	}
	return strings.Join(sections, "\n")
}

func buildList(header string, movies []domain.Movie) string {
	if len(movies) > listLimit {
		movies = movies[:listLimit]
	}
	lines := make([]string, 0, len(movies)+1)
	lines = append(lines, header)
	for i, m := range movies {
		lines = append(lines, caption.ListLine(i+1, m))
	}
	return strings.Join(lines, "\n")
}

// parseCommand отделяет имя команды (без «/» и «@bot») от аргументов.
func parseCommand(text string) (string, string) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	name, args, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}

func formatInterval(d time.Duration) string {
	if d <= 0 {
		return "кілька годин"
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d год", int(d/time.Hour))
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d хв", int(d/time.Minute))
	}
	return d.String()
}
