package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/usecase/relay"
)

// unknownCommandText — ответ на нераспознанную команду.
const unknownCommandText = "🤖 <b>Неизвестная команда.</b>\n\n" +
	"💡 <i>Используйте /start для начала работы с ботом.</i>"

// Handler обслуживает вебхук бота: разбирает апдейты и передаёт их
// движку пересылки в нормализованном виде.
type Handler struct {
	relay     *relay.Service
	transport domain.Transport
	log       zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(relaySvc *relay.Service, transport domain.Transport, log zerolog.Logger) *Handler {
	return &Handler{relay: relaySvc, transport: transport, log: log}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	in := fromMessage(msg)

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		h.relay.HandleFreeform(ctx, in)
		return
	}

	// Команда безусловно отменяет незавершённый набор и обрабатывается
	// после отмены.
	h.relay.CancelPending(ctx, msg.From.ID, msg.Chat.ID)

	switch {
	case strings.HasPrefix(text, "/start"):
		h.relay.Start(ctx, in)
	default:
		if _, err := h.transport.SendText(ctx, msg.Chat.ID, unknownCommandText, nil); err != nil {
			h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("не удалось ответить на неизвестную команду")
		}
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	data, err := relay.ParseCallback(cb.Data)
	if err != nil {
		h.log.Warn().Str("data", cb.Data).Msg("нераспознанные данные callback")
		if ansErr := h.transport.AnswerCallback(ctx, cb.ID, ""); ansErr != nil {
			h.log.Debug().Err(ansErr).Msg("не удалось подтвердить callback")
		}
		return
	}
	h.relay.HandleCallback(ctx, relay.CallbackEvent{
		Profile:    profileOf(cb.From),
		ChatID:     cb.Message.Chat.ID,
		MessageID:  cb.Message.MessageID,
		CallbackID: cb.ID,
		Data:       data,
	})
}

// fromMessage нормализует сообщение Bot API. Из вложений берётся первое
// распознанное; для фото — вариант максимального разрешения.
func fromMessage(msg *tgbotapi.Message) relay.Inbound {
	in := relay.Inbound{
		Profile:   profileOf(msg.From),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Caption:   msg.Caption,
	}

	switch {
	case len(msg.Photo) > 0:
		in.Media = &domain.Media{Kind: domain.MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID}
	case msg.Video != nil:
		in.Media = &domain.Media{Kind: domain.MediaVideo, FileID: msg.Video.FileID}
	case msg.Document != nil:
		in.Media = &domain.Media{Kind: domain.MediaDocument, FileID: msg.Document.FileID}
	case msg.Audio != nil:
		in.Media = &domain.Media{Kind: domain.MediaAudio, FileID: msg.Audio.FileID}
	case msg.Voice != nil:
		in.Media = &domain.Media{Kind: domain.MediaVoice, FileID: msg.Voice.FileID}
	case msg.VideoNote != nil:
		in.Media = &domain.Media{Kind: domain.MediaVideoNote, FileID: msg.VideoNote.FileID}
	case msg.Sticker != nil:
		in.Media = &domain.Media{Kind: domain.MediaSticker, FileID: msg.Sticker.FileID}
	}
	return in
}

func profileOf(from *tgbotapi.User) domain.TelegramProfile {
	return domain.TelegramProfile{
		UserID:    from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
}
