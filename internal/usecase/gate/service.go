package gate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/metrics"
)

// PromptText — сообщение с требованием подписаться на спонсоров.
const PromptText = "🤖 <b>Чтобы использовать бота, подпишитесь на наших спонсоров:</b>\n\n" +
	"🔹 <i>Это необходимо для поддержки проекта</i>"

// CheckButtonLabel — кнопка повторной проверки подписки.
const CheckButtonLabel = "✅ Проверить подписку"

// Service проверяет подписку пользователя на спонсорские каналы.
type Service struct {
	channels  domain.ChannelRepo
	transport domain.Transport
	log       zerolog.Logger
}

// Result — итог проверки. При провале Channels содержит список для
// построения кнопок подписки.
type Result struct {
	Subscribed bool
	Channels   []domain.SponsorChannel
}

// NewService создаёт гейт подписки.
func NewService(channels domain.ChannelRepo, transport domain.Transport, log zerolog.Logger) *Service {
	return &Service{channels: channels, transport: transport, log: log}
}

// isBotLink сообщает, является ли URL канала deep-link'ом бота.
// На такие «каналы» проверка членства невозможна, они считаются
// выполненными автоматически.
func isBotLink(url string) bool {
	return strings.Contains(url, "?start=")
}

// Check проверяет членство пользователя во всех спонсорских каналах.
// Ошибка транспорта или хранилища трактуется в пользу пользователя:
// гейт открывается, доступность важнее строгости.
func (s *Service) Check(ctx context.Context, userID int64) Result {
	channels, err := s.channels.ListChannels(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось получить спонсорские каналы, гейт открыт")
		metrics.GateChecks.WithLabelValues("fail_open").Inc()
		return Result{Subscribed: true}
	}

	for _, ch := range channels {
		if isBotLink(ch.URL) {
			continue
		}
		status, err := s.transport.ChatMember(ctx, ch.ChannelID, userID)
		if err != nil {
			s.log.Error().Err(err).Int64("channel", ch.ChannelID).Msg("не удалось проверить членство, гейт открыт")
			metrics.GateChecks.WithLabelValues("fail_open").Inc()
			return Result{Subscribed: true}
		}
		if !status.Subscribed() {
			metrics.GateChecks.WithLabelValues("denied").Inc()
			return Result{Subscribed: false, Channels: channels}
		}
	}

	s.recordSubscriptions(ctx, channels, userID)
	metrics.GateChecks.WithLabelValues("passed").Inc()
	return Result{Subscribed: true, Channels: channels}
}

// recordSubscriptions идемпотентно фиксирует подписку по каждому каналу.
func (s *Service) recordSubscriptions(ctx context.Context, channels []domain.SponsorChannel, userID int64) {
	for _, ch := range channels {
		if _, err := s.channels.AddSubscriber(ctx, ch.ChannelID, userID); err != nil {
			s.log.Error().Err(err).Int64("channel", ch.ChannelID).Int64("user", userID).Msg("не удалось записать подписку")
		}
	}
}

// Prompt строит клавиатуру приглашения подписаться: кнопка на каждый
// канал плюс одна кнопка возобновления отложенного действия.
func Prompt(channels []domain.SponsorChannel, retryCallback string) *domain.Keyboard {
	kb := &domain.Keyboard{}
	for _, ch := range channels {
		kb.Row(domain.Button{Label: ch.Name, URL: strings.ReplaceAll(ch.URL, ";", ":")})
	}
	kb.Row(domain.Button{Label: CheckButtonLabel, CallbackData: retryCallback})
	return kb
}
