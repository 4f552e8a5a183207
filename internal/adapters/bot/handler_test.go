package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"anon-ask-bot/internal/domain"
)

func baseMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 10, UserName: "visitor", FirstName: "Ann", LastName: "K"},
		Chat:      &tgbotapi.Chat{ID: 10},
	}
}

func TestFromMessageText(t *testing.T) {
	msg := baseMessage()
	msg.Text = "привет"

	in := fromMessage(msg)
	if in.Profile.UserID != 10 || in.Profile.Username != "visitor" {
		t.Fatalf("профиль собран неверно: %+v", in.Profile)
	}
	if in.Text != "привет" || in.Media != nil {
		t.Fatalf("текстовое сообщение без вложений: %+v", in)
	}
}

func TestFromMessagePicksLargestPhoto(t *testing.T) {
	msg := baseMessage()
	msg.Caption = "подпись"
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90},
		{FileID: "large", Width: 800},
	}

	in := fromMessage(msg)
	if in.Media == nil || in.Media.Kind != domain.MediaPhoto {
		t.Fatalf("ожидали фото, получили %+v", in.Media)
	}
	if in.Media.FileID != "large" {
		t.Fatalf("ожидали вариант максимального разрешения, получили %q", in.Media.FileID)
	}
	if in.Caption != "подпись" {
		t.Fatalf("подпись потеряна")
	}
}

func TestFromMessageVoice(t *testing.T) {
	msg := baseMessage()
	msg.Voice = &tgbotapi.Voice{FileID: "voice1"}

	in := fromMessage(msg)
	if in.Media == nil || in.Media.Kind != domain.MediaVoice || in.Media.FileID != "voice1" {
		t.Fatalf("голосовое вложение разобрано неверно: %+v", in.Media)
	}
}

func TestFromMessagePhotoWinsOverDocument(t *testing.T) {
	msg := baseMessage()
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "photo1"}}
	msg.Document = &tgbotapi.Document{FileID: "doc1"}

	in := fromMessage(msg)
	if in.Media == nil || in.Media.Kind != domain.MediaPhoto {
		t.Fatalf("при нескольких вложениях берётся первое распознанное: %+v", in.Media)
	}
}
