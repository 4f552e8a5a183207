package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/metrics"
)

// Transport реализует domain.Transport поверх Bot API.
type Transport struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Transport = (*Transport)(nil)

// NewTransport создаёт транспортный адаптер.
func NewTransport(bot *tgbotapi.BotAPI, log zerolog.Logger) *Transport {
	return &Transport{bot: bot, log: log}
}

func toMarkup(kb *domain.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			switch {
			case b.URL != "":
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			case b.SwitchInline != "":
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonSwitch(b.Label, b.SwitchInline))
			default:
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.CallbackData))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// SendText отправляет текст, разбивая его по лимиту сообщения.
// Клавиатура прикрепляется к первой части.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, kb *domain.Keyboard) (int, error) {
	parts := SplitMessage(text)
	var firstID int
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		if i == 0 {
			if markup := toMarkup(kb); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		start := time.Now()
		sent, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return 0, err
		}
		if i == 0 {
			firstID = sent.MessageID
		}
	}
	return firstID, nil
}

// SendMedia пересылает медиафайл по file_id без перекодирования.
// У видеозаметок и стикеров подписи нет — caption игнорируется.
func (t *Transport) SendMedia(ctx context.Context, chatID int64, media domain.Media, caption string, kb *domain.Keyboard) (int, error) {
	file := tgbotapi.FileID(media.FileID)
	caption = TruncateCaption(caption)
	markup := toMarkup(kb)

	var cfg tgbotapi.Chattable
	switch media.Kind {
	case domain.MediaPhoto:
		c := tgbotapi.NewPhoto(chatID, file)
		c.Caption = caption
		c.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	case domain.MediaVideo:
		c := tgbotapi.NewVideo(chatID, file)
		c.Caption = caption
		c.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	case domain.MediaDocument:
		c := tgbotapi.NewDocument(chatID, file)
		c.Caption = caption
		c.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	case domain.MediaAudio:
		c := tgbotapi.NewAudio(chatID, file)
		c.Caption = caption
		c.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	case domain.MediaVoice:
		c := tgbotapi.NewVoice(chatID, file)
		c.Caption = caption
		c.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	case domain.MediaVideoNote:
		c := tgbotapi.NewVideoNote(chatID, 0, file)
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	case domain.MediaSticker:
		c := tgbotapi.NewSticker(chatID, file)
		if markup != nil {
			c.ReplyMarkup = markup
		}
		cfg = c
	default:
		return 0, fmt.Errorf("неизвестный тип медиа: %s", media.Kind)
	}

	start := time.Now()
	sent, err := t.bot.Send(cfg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_"+string(media.Kind), strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return 0, err
	}
	return sent.MessageID, nil
}

// CopyMessage копирует сообщение как есть, без ссылки на источник.
func (t *Transport) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, kb *domain.Keyboard) (int, error) {
	cfg := tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID)
	if markup := toMarkup(kb); markup != nil {
		cfg.ReplyMarkup = markup
	}
	start := time.Now()
	copied, err := t.bot.CopyMessage(cfg)
	metrics.ObserveNetworkRequest("telegram_bot", "copy_message", strconv.FormatInt(toChatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return 0, err
	}
	return copied.MessageID, nil
}

// DeleteMessage удаляет сообщение.
func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	start := time.Now()
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	metrics.ObserveNetworkRequest("telegram_bot", "delete_message", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// EditMessage меняет текст сообщения; если текста нет (медиа с подписью),
// повторяет попытку как правку подписи.
func (t *Transport) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *domain.Keyboard) error {
	markup := toMarkup(kb)

	editText := tgbotapi.NewEditMessageText(chatID, messageID, text)
	editText.ParseMode = tgbotapi.ModeHTML
	editText.ReplyMarkup = markup
	start := time.Now()
	_, err := t.bot.Request(editText)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message_text", strconv.FormatInt(chatID, 10), start, err)
	if err == nil {
		return nil
	}

	editCaption := tgbotapi.NewEditMessageCaption(chatID, messageID, TruncateCaption(text))
	editCaption.ParseMode = tgbotapi.ModeHTML
	editCaption.ReplyMarkup = markup
	start = time.Now()
	_, err = t.bot.Request(editCaption)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message_caption", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// ChatMember возвращает статус участника канала.
func (t *Transport) ChatMember(ctx context.Context, channelID, userID int64) (domain.MemberStatus, error) {
	start := time.Now()
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channelID, UserID: userID},
	})
	metrics.ObserveNetworkRequest("telegram_bot", "get_chat_member", strconv.FormatInt(channelID, 10), start, err)
	if err != nil {
		return "", err
	}
	return domain.MemberStatus(member.Status), nil
}

// AnswerCallback отвечает на callback query.
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	start := time.Now()
	_, err := t.bot.Request(tgbotapi.NewCallback(callbackID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "callback", start, err)
	return err
}

// BotUsername возвращает имя бота для персональных ссылок.
func (t *Transport) BotUsername() string {
	return t.bot.Self.UserName
}
