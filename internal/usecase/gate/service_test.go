package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
)

type stubChannels struct {
	channels []domain.SponsorChannel
	listErr  error
	added    []int64
}

func (s *stubChannels) ListChannels(context.Context) ([]domain.SponsorChannel, error) {
	return s.channels, s.listErr
}

func (s *stubChannels) AddSubscriber(_ context.Context, channelID, _ int64) (bool, error) {
	s.added = append(s.added, channelID)
	return true, nil
}

type stubTransport struct {
	member      domain.MemberStatus
	memberErr   error
	memberCalls int
}

func (s *stubTransport) ChatMember(context.Context, int64, int64) (domain.MemberStatus, error) {
	s.memberCalls++
	return s.member, s.memberErr
}

func (s *stubTransport) SendText(context.Context, int64, string, *domain.Keyboard) (int, error) {
	return 0, nil
}
func (s *stubTransport) SendMedia(context.Context, int64, domain.Media, string, *domain.Keyboard) (int, error) {
	return 0, nil
}
func (s *stubTransport) CopyMessage(context.Context, int64, int64, int, *domain.Keyboard) (int, error) {
	return 0, nil
}
func (s *stubTransport) DeleteMessage(context.Context, int64, int) error { return nil }
func (s *stubTransport) EditMessage(context.Context, int64, int, string, *domain.Keyboard) error {
	return nil
}
func (s *stubTransport) AnswerCallback(context.Context, string, string) error { return nil }
func (s *stubTransport) BotUsername() string                                  { return "anon_ask_bot" }

func newGate(chans *stubChannels, tr *stubTransport) *Service {
	return NewService(chans, tr, zerolog.Nop())
}

func TestCheckFailsOpenOnStorageError(t *testing.T) {
	chans := &stubChannels{listErr: errors.New("бд недоступна")}
	res := newGate(chans, &stubTransport{}).Check(context.Background(), 10)
	if !res.Subscribed {
		t.Fatalf("при ошибке хранилища гейт должен открываться")
	}
}

func TestCheckFailsOpenOnTransportError(t *testing.T) {
	chans := &stubChannels{channels: []domain.SponsorChannel{{ChannelID: -100, URL: "https://t.me/sponsor"}}}
	tr := &stubTransport{memberErr: errors.New("канал недоступен")}
	res := newGate(chans, tr).Check(context.Background(), 10)
	if !res.Subscribed {
		t.Fatalf("при ошибке транспорта гейт должен открываться")
	}
}

func TestCheckSkipsBotLinkChannels(t *testing.T) {
	chans := &stubChannels{channels: []domain.SponsorChannel{
		{ChannelID: -1, URL: "https://t.me/partner_bot?start=xyz"},
	}}
	tr := &stubTransport{member: domain.MemberStatusLeft}
	res := newGate(chans, tr).Check(context.Background(), 10)
	if !res.Subscribed {
		t.Fatalf("deep-link каналы считаются выполненными")
	}
	if tr.memberCalls != 0 {
		t.Fatalf("членство в deep-link канале проверяться не должно")
	}
}

func TestCheckDenied(t *testing.T) {
	chans := &stubChannels{channels: []domain.SponsorChannel{
		{ChannelID: -100, URL: "https://t.me/sponsor", Name: "Спонсор"},
	}}
	tr := &stubTransport{member: domain.MemberStatusLeft}
	res := newGate(chans, tr).Check(context.Background(), 10)
	if res.Subscribed {
		t.Fatalf("отписанный пользователь не должен проходить гейт")
	}
	if len(res.Channels) != 1 {
		t.Fatalf("ожидали список каналов для кнопок подписки")
	}
	if len(chans.added) != 0 {
		t.Fatalf("провал гейта не должен записывать подписки")
	}
}

func TestCheckPassedRecordsSubscriptions(t *testing.T) {
	chans := &stubChannels{channels: []domain.SponsorChannel{
		{ChannelID: -100, URL: "https://t.me/one"},
		{ChannelID: -200, URL: "https://t.me/two"},
	}}
	tr := &stubTransport{member: domain.MemberStatusMember}
	res := newGate(chans, tr).Check(context.Background(), 10)
	if !res.Subscribed {
		t.Fatalf("подписанный пользователь должен проходить гейт")
	}
	if len(chans.added) != 2 {
		t.Fatalf("ожидали запись подписки по каждому каналу, получили %d", len(chans.added))
	}
}

func TestPromptKeyboard(t *testing.T) {
	channels := []domain.SponsorChannel{
		{ChannelID: -100, URL: "https://t.me/joinchat;inviteHash", Name: "Закрытый канал"},
	}
	kb := Prompt(channels, "start:77")
	if len(kb.Rows) != 2 {
		t.Fatalf("ожидали ряд канала и ряд повтора, получили %d", len(kb.Rows))
	}
	if kb.Rows[0][0].URL != "https://t.me/joinchat:inviteHash" {
		t.Fatalf("точка с запятой в URL должна заменяться двоеточием: %q", kb.Rows[0][0].URL)
	}
	if kb.Rows[1][0].CallbackData != "start:77" {
		t.Fatalf("кнопка повтора должна нести исходное действие")
	}
}
