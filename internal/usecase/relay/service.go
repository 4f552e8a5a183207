package relay

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/metrics"
	"anon-ask-bot/internal/usecase/ads"
	"anon-ask-bot/internal/usecase/gate"
	"anon-ask-bot/internal/usecase/referral"
)

// Тексты бота. Форматирование — HTML Bot API.
const (
	welcomeText = "🎉 <b>Добро пожаловать в бот анонимных вопросов!</b>\n\n" +
		"💬 <b>Начните получать анонимные вопросы прямо сейчас!</b>\n\n" +
		"👉 <code>%s</code>\n\n" +
		"💌 <i>Разместите эту ссылку ☝️ в описании своего профиля Telegram, TikTok, Instagram (stories), чтобы вам могли написать</i>"

	welcomeRefererText = "🎉 <b>Добро пожаловать!</b>\n\n" +
		"💬 <b>Введите анонимное сообщение, которое хотите отправить:</b>\n\n" +
		"🔹 <i>Получатель не узнает, кто вы</i>"

	composePromptText = "💬 <b>Введите ваше сообщение:</b>\n\n" +
		"🔹 <i>Это сообщение будет отправлено анонимно</i>"

	composeHintText = "📩 <b>Для отправки анонимного сообщения:</b>\n\n" +
		"🔹 <i>Перейдите по персональной ссылке от получателя</i>\n" +
		"🔹 <i>Или используйте команду /start для начала работы</i>"

	cancelNoticeText = "❌ <b>Команды недоступны в режиме отправки сообщения.</b>\n\n" +
		"✅ <i>Операция отправки сообщения отменена.</i>"

	missingRefererText = "❗️ <b>Не удалось отправить сообщение.</b>\n\n" +
		"ℹ️ <i>Отсутствует получатель. Попробуйте начать сначала.</i>"

	inboundHeaderText = "📦 <b>Новое анонимное сообщение для вас:</b>"
	inboundFooterText = "💬 <b>Вы можете ответить на это сообщение!</b>"

	replyHeaderText = "📬 <b>Ответ на ваше анонимное сообщение:</b>"
	replyFooterText = "💌 <b>Хотите получать анонимные сообщения тоже? Нажмите ⬇️</b>"

	sentConfirmText = "✅ <b>Ваше анонимное сообщение было успешно отправлено!</b>\n\n" +
		"💌 <b>Хотите получать анонимные сообщения тоже? Нажмите ⬇️</b>"

	replyConfirmText = "📨 <b>Ваш ответ был успешно отправлен!</b>"

	personalLinkText = "🔗 <b>Вот ваша персональная ссылка:</b>\n\n" +
		"🔗 <code>%s</code>\n\n" +
		"💌 <i>Делитесь ей и получайте анонимные сообщения!</i>"

	shareLinkText = "🔗 <b>Ваша персональная ссылка:</b>\n\n" +
		"👉 <code>%s</code>\n\n" +
		"💌 <i>Поделитесь ей с друзьями и начните получать анонимные сообщения!</i>"
)

// Подписи кнопок.
const (
	replyButtonLabel     = "Reply"
	sendAgainButtonLabel = "Отправить снова"
	myLinkButtonLabel    = "Моя ссылка"
	getLinkButtonLabel   = "Получить ссылку"
	shareButtonLabel     = "📤 Поделиться ссылкой"
)

// excerptLimit ограничивает длину выдержки сообщения в аудите.
const excerptLimit = 256

// Inbound — входящее сообщение пользователя в нормализованном виде.
type Inbound struct {
	Profile   domain.TelegramProfile
	ChatID    int64
	MessageID int
	Text      string
	Caption   string
	Media     *domain.Media
}

// CallbackEvent — нажатие инлайн-кнопки.
type CallbackEvent struct {
	Profile    domain.TelegramProfile
	ChatID     int64
	MessageID  int
	CallbackID string
	Data       Callback
}

// Service — конечный автомат анонимной пересылки. Держит сессии набора,
// прогоняет каждый вход в режим набора через гейт подписки и доставляет
// полезную нагрузку адресату без раскрытия отправителя.
type Service struct {
	sessions  *SessionStore
	users     domain.UserRepo
	transport domain.Transport
	gate      *gate.Service
	referrals *referral.Service
	ads       *ads.Service
	log       zerolog.Logger
}

// NewService создаёт движок пересылки.
func NewService(
	sessions *SessionStore,
	users domain.UserRepo,
	transport domain.Transport,
	gateSvc *gate.Service,
	referrals *referral.Service,
	adsSvc *ads.Service,
	log zerolog.Logger,
) *Service {
	return &Service{
		sessions:  sessions,
		users:     users,
		transport: transport,
		gate:      gateSvc,
		referrals: referrals,
		ads:       adsSvc,
		log:       log,
	}
}

// personalLink строит deep-link на бота для пользователя.
func (s *Service) personalLink(userID int64) string {
	return fmt.Sprintf("t.me/%s?start=%d", s.transport.BotUsername(), userID)
}

// startParam извлекает параметр deep-link из текста команды /start.
func startParam(text string) string {
	_, param, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(param)
}

// excerpt возвращает усечённую выдержку полезной нагрузки для аудита.
func excerpt(in Inbound) string {
	text := in.Text
	if text == "" {
		text = in.Caption
	}
	runes := []rune(text)
	if len(runes) > excerptLimit {
		return string(runes[:excerptLimit])
	}
	return text
}

// Start обрабатывает команду /start с опциональным параметром deep-link.
func (s *Service) Start(ctx context.Context, in Inbound) {
	userID := in.Profile.UserID

	if _, err := s.users.EnsureUser(ctx, in.Profile); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("не удалось сохранить пользователя")
		return
	}
	first, err := s.users.MarkStarted(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("не удалось сбросить флаг первого запуска")
		first = false
	}

	s.dispatchStart(ctx, in, startParam(in.Text), first, 0)
	s.ads.Show(ctx, userID)
}

// dispatchStart ведёт онбординг в зависимости от параметра deep-link:
// партнёрский код, идентификатор адресата или его отсутствие.
// triggerMessageID != 0 — сообщение с кнопкой, вызвавшее повтор; оно
// удаляется перед подсказкой набора.
func (s *Service) dispatchStart(ctx context.Context, in Inbound, param string, first bool, triggerMessageID int) {
	userID := in.Profile.UserID

	if param == "" {
		s.sendWelcome(ctx, in)
		return
	}

	ref, err := s.referrals.Attribute(ctx, param, userID, first)
	if err != nil {
		s.log.Error().Err(err).Str("code", param).Msg("не удалось атрибутировать переход")
	}
	if ref != nil {
		s.referrals.RecordTracking(ctx, ref.ReferrerID, in.Profile, "")
		s.sendWelcome(ctx, in)
		return
	}

	if refererID, err := strconv.ParseInt(param, 10, 64); err == nil && refererID != userID {
		s.beginCompose(ctx, composeIntent{
			profile:   in.Profile,
			chatID:    in.ChatID,
			triggerID: triggerMessageID,
			session: domain.Session{
				UserID:    userID,
				State:     domain.SessionAwaitingMessage,
				Action:    domain.ActionSend,
				RefererID: refererID,
			},
			retry:    Callback{Kind: CallbackStart, StartParam: param}.Pack(),
			prompt:   welcomeRefererText,
			promptKb: (&domain.Keyboard{}).Row(s.shareButton(userID)),
		})
		return
	}

	s.sendWelcome(ctx, in)
}

// sendWelcome отправляет органическое приветствие с персональной ссылкой.
func (s *Service) sendWelcome(ctx context.Context, in Inbound) {
	userID := in.Profile.UserID
	text := fmt.Sprintf(welcomeText, s.personalLink(userID))
	kb := (&domain.Keyboard{}).Row(s.shareButton(userID))
	if _, err := s.transport.SendText(ctx, in.ChatID, text, kb); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("не удалось отправить приветствие")
	}
}

func (s *Service) shareButton(userID int64) domain.Button {
	return domain.Button{
		Label:        shareButtonLabel,
		CallbackData: Callback{Kind: CallbackShareLink, RefererID: userID}.Pack(),
	}
}

// composeIntent — намерение открыть режим набора сообщения.
type composeIntent struct {
	profile   domain.TelegramProfile
	chatID    int64
	triggerID int
	session   domain.Session
	retry     string
	prompt    string
	promptKb  *domain.Keyboard
}

// beginCompose прогоняет намерение набора через гейт подписки. Провал
// гейта показывает приглашение подписаться и не трогает сессию; успех
// удаляет триггерное сообщение, шлёт подсказку и открывает сессию.
func (s *Service) beginCompose(ctx context.Context, intent composeIntent) {
	res := s.gate.Check(ctx, intent.profile.UserID)
	if !res.Subscribed {
		s.promptSubscribe(ctx, intent.chatID, intent.triggerID, res.Channels, intent.retry)
		return
	}

	if intent.triggerID != 0 {
		if err := s.transport.DeleteMessage(ctx, intent.chatID, intent.triggerID); err != nil {
			s.log.Debug().Err(err).Int("message", intent.triggerID).Msg("не удалось удалить триггерное сообщение")
		}
	}

	promptID, err := s.transport.SendText(ctx, intent.chatID, intent.prompt, intent.promptKb)
	if err != nil {
		s.log.Error().Err(err).Int64("user", intent.profile.UserID).Msg("не удалось отправить подсказку набора")
		return
	}

	sess := intent.session
	sess.PromptMessageID = promptID
	if err := s.sessions.Put(sess); err != nil {
		s.log.Error().Err(err).Int64("user", sess.UserID).Msg("не удалось открыть сессию набора")
	}
}

// promptSubscribe показывает приглашение подписаться на спонсоров.
// Сообщение-триггер редактируется на месте; если редактирование
// невозможно, приглашение уходит отдельным сообщением.
func (s *Service) promptSubscribe(ctx context.Context, chatID int64, messageID int, channels []domain.SponsorChannel, retry string) {
	kb := gate.Prompt(channels, retry)
	if messageID != 0 {
		if err := s.transport.EditMessage(ctx, chatID, messageID, gate.PromptText, kb); err == nil {
			return
		}
	}
	if _, err := s.transport.SendText(ctx, chatID, gate.PromptText, kb); err != nil {
		s.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось показать приглашение подписаться")
	}
}

// CancelPending отменяет незавершённый набор сообщения. Возвращает true,
// если сессия существовала; уведомление об отмене уходит пользователю.
func (s *Service) CancelPending(ctx context.Context, userID, chatID int64) bool {
	if _, ok := s.sessions.Take(userID); !ok {
		return false
	}
	if _, err := s.transport.SendText(ctx, chatID, cancelNoticeText, nil); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("не удалось уведомить об отмене набора")
	}
	return true
}

// HandleFreeform обрабатывает свободное сообщение пользователя. При
// открытой сессии набора сообщение пересылается адресату; без сессии
// пользователь получает подсказку.
func (s *Service) HandleFreeform(ctx context.Context, in Inbound) {
	userID := in.Profile.UserID

	sess, ok := s.sessions.Take(userID)
	if !ok {
		if _, err := s.transport.SendText(ctx, in.ChatID, composeHintText, nil); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Msg("не удалось отправить подсказку")
		}
		return
	}

	if sess.PromptMessageID != 0 {
		if err := s.transport.DeleteMessage(ctx, in.ChatID, sess.PromptMessageID); err != nil {
			s.log.Debug().Err(err).Int("message", sess.PromptMessageID).Msg("не удалось удалить подсказку набора")
		}
	}

	target := sess.RefererID
	if sess.Action == domain.ActionReply {
		target = sess.SenderID
	}
	if target == 0 {
		if _, err := s.transport.SendText(ctx, in.ChatID, missingRefererText, nil); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Msg("не удалось уведомить о потерянном получателе")
		}
		s.ads.Show(ctx, userID)
		return
	}

	switch sess.Action {
	case domain.ActionReply:
		s.deliverReply(ctx, in, sess)
	default:
		s.deliverSend(ctx, in, sess)
	}
	s.ads.Show(ctx, userID)
}

// deliverSend доставляет анонимное сообщение владельцу ссылки.
func (s *Service) deliverSend(ctx context.Context, in Inbound, sess domain.Session) {
	kb := (&domain.Keyboard{}).Row(domain.Button{
		Label: replyButtonLabel,
		CallbackData: Callback{
			Kind:            CallbackReply,
			SenderID:        in.Profile.UserID,
			RefererID:       sess.RefererID,
			OriginMessageID: in.MessageID,
		}.Pack(),
	})

	if !s.deliver(ctx, sess.RefererID, in, inboundHeaderText, inboundFooterText, kb) {
		metrics.RelayFailed.Inc()
		return
	}
	metrics.RelayDelivered.WithLabelValues(string(domain.ActionSend)).Inc()

	s.referrals.RecordTracking(ctx, sess.RefererID, in.Profile, excerpt(in))

	confirmKb := (&domain.Keyboard{}).
		Row(domain.Button{
			Label:        getLinkButtonLabel,
			CallbackData: Callback{Kind: CallbackGetLink, RefererID: sess.RefererID}.Pack(),
		}).
		Row(domain.Button{
			Label:        sendAgainButtonLabel,
			CallbackData: Callback{Kind: CallbackSendAgain, RefererID: sess.RefererID}.Pack(),
		})
	if _, err := s.transport.SendText(ctx, in.ChatID, sentConfirmText, confirmKb); err != nil {
		s.log.Error().Err(err).Int64("user", in.Profile.UserID).Msg("не удалось подтвердить отправку")
	}
}

// deliverReply доставляет ответ исходному отправителю.
func (s *Service) deliverReply(ctx context.Context, in Inbound, sess domain.Session) {
	kb := (&domain.Keyboard{}).Row(domain.Button{
		Label:        getLinkButtonLabel,
		CallbackData: Callback{Kind: CallbackGetLink, RefererID: sess.RefererID}.Pack(),
	})

	if !s.deliver(ctx, sess.SenderID, in, replyHeaderText, replyFooterText, kb) {
		metrics.RelayFailed.Inc()
		return
	}
	metrics.RelayDelivered.WithLabelValues(string(domain.ActionReply)).Inc()

	confirmKb := (&domain.Keyboard{}).Row(domain.Button{
		Label:        myLinkButtonLabel,
		CallbackData: Callback{Kind: CallbackGetLink, RefererID: sess.RefererID, CheckMy: true}.Pack(),
	})
	if _, err := s.transport.SendText(ctx, in.ChatID, replyConfirmText, confirmKb); err != nil {
		s.log.Error().Err(err).Int64("user", in.Profile.UserID).Msg("не удалось подтвердить ответ")
	}
}

// deliver пересылает полезную нагрузку адресату, не раскрывая источник.
// Медиа уходит по file_id, текст — с рамкой из заголовка и подвала,
// прочие типы копируются без подписи к автору.
func (s *Service) deliver(ctx context.Context, target int64, in Inbound, header, footer string, kb *domain.Keyboard) bool {
	var err error
	switch {
	case in.Media != nil:
		caption := framedCaption(in.Media.Kind, header, in.Caption, footer)
		_, err = s.transport.SendMedia(ctx, target, *in.Media, caption, kb)
	case in.Text != "":
		text := header + "\n\n<i>" + html.EscapeString(in.Text) + "</i>\n\n" + footer
		_, err = s.transport.SendText(ctx, target, text, kb)
	default:
		_, err = s.transport.CopyMessage(ctx, target, in.ChatID, in.MessageID, kb)
	}
	if err != nil {
		s.log.Error().Err(err).Int64("target", target).Msg("не удалось доставить сообщение")
		return false
	}
	return true
}

// framedCaption собирает подпись медиа из заголовка, подписи автора и
// подвала. Кружки и стикеры подписей не поддерживают.
func framedCaption(kind domain.MediaKind, header, caption, footer string) string {
	if kind == domain.MediaVideoNote || kind == domain.MediaSticker {
		return ""
	}
	if caption == "" {
		return header + "\n\n" + footer
	}
	return header + "\n\n<i>" + html.EscapeString(caption) + "</i>\n\n" + footer
}

// HandleCallback обрабатывает нажатие инлайн-кнопки.
func (s *Service) HandleCallback(ctx context.Context, ev CallbackEvent) {
	userID := ev.Profile.UserID

	var ack string
	switch ev.Data.Kind {
	case CallbackReply:
		ack = "Reply"
		s.sessions.Clear(userID)
		s.beginCompose(ctx, composeIntent{
			profile:   ev.Profile,
			chatID:    ev.ChatID,
			triggerID: ev.MessageID,
			session: domain.Session{
				UserID:        userID,
				State:         domain.SessionAwaitingMessage,
				Action:        domain.ActionReply,
				RefererID:     ev.Data.RefererID,
				SenderID:      ev.Data.SenderID,
				ReplyTargetID: ev.Data.OriginMessageID,
			},
			retry:  ev.Data.Pack(),
			prompt: composePromptText,
		})

	case CallbackSendAgain:
		ack = "Send again"
		s.sessions.Clear(userID)
		s.beginCompose(ctx, composeIntent{
			profile:   ev.Profile,
			chatID:    ev.ChatID,
			triggerID: ev.MessageID,
			session: domain.Session{
				UserID:    userID,
				State:     domain.SessionAwaitingMessage,
				Action:    domain.ActionSend,
				RefererID: ev.Data.RefererID,
			},
			retry:  ev.Data.Pack(),
			prompt: composePromptText,
		})

	case CallbackStart:
		ack = "Start"
		s.sessions.Clear(userID)
		s.dispatchStart(ctx, Inbound{
			Profile: ev.Profile,
			ChatID:  ev.ChatID,
		}, ev.Data.StartParam, false, ev.MessageID)
		s.ads.Show(ctx, userID)

	case CallbackGetLink:
		ack = "My link"
		s.showPersonalLink(ctx, ev)
		s.ads.Show(ctx, userID)

	case CallbackShareLink:
		ack = "Share"
		s.showShareLink(ctx, ev)

	default:
		s.log.Warn().Str("kind", ev.Data.Kind).Msg("неизвестный вид callback")
	}

	if err := s.transport.AnswerCallback(ctx, ev.CallbackID, ack); err != nil {
		s.log.Debug().Err(err).Msg("не удалось подтвердить callback")
	}
}

// showPersonalLink показывает персональную ссылку нажавшего, предварительно
// пропустив его через гейт подписки. Сообщение с кнопкой редактируется на
// месте.
func (s *Service) showPersonalLink(ctx context.Context, ev CallbackEvent) {
	userID := ev.Profile.UserID

	res := s.gate.Check(ctx, userID)
	if !res.Subscribed {
		s.promptSubscribe(ctx, ev.ChatID, ev.MessageID, res.Channels, ev.Data.Pack())
		return
	}

	text := fmt.Sprintf(personalLinkText, "https://"+s.personalLink(userID))
	kb := &domain.Keyboard{}
	if !ev.Data.CheckMy {
		kb.Row(domain.Button{
			Label:        sendAgainButtonLabel,
			CallbackData: Callback{Kind: CallbackSendAgain, RefererID: ev.Data.RefererID}.Pack(),
		})
	}
	kb.Row(s.shareButton(userID))

	if err := s.transport.EditMessage(ctx, ev.ChatID, ev.MessageID, text, kb); err != nil {
		if _, err := s.transport.SendText(ctx, ev.ChatID, text, kb); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Msg("не удалось показать персональную ссылку")
		}
	}
}

// showShareLink показывает кнопки шаринга персональной ссылки. Гейт не
// применяется: шаринг ссылки выгоден системе в любом состоянии.
func (s *Service) showShareLink(ctx context.Context, ev CallbackEvent) {
	link := "https://" + s.personalLink(ev.Profile.UserID)
	text := fmt.Sprintf(shareLinkText, link)
	kb := (&domain.Keyboard{}).
		Row(domain.Button{Label: "📤 Отправить в чат", SwitchInline: link}).
		Row(domain.Button{Label: "🔗 Открыть ссылку", URL: link})

	if err := s.transport.EditMessage(ctx, ev.ChatID, ev.MessageID, text, kb); err != nil {
		if _, err := s.transport.SendText(ctx, ev.ChatID, text, kb); err != nil {
			s.log.Error().Err(err).Int64("user", ev.Profile.UserID).Msg("не удалось показать кнопки шаринга")
		}
	}
}
