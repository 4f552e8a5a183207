package domain

import "context"

// MemberStatus — статус участника канала по данным мессенджера.
type MemberStatus string

const (
	MemberStatusMember        MemberStatus = "member"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusOwner         MemberStatus = "owner"
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

// Subscribed сообщает, считается ли статус подпиской на канал.
func (s MemberStatus) Subscribed() bool {
	switch s {
	case MemberStatusMember, MemberStatusAdministrator, MemberStatusOwner, MemberStatusCreator:
		return true
	default:
		return false
	}
}

// MediaKind — вид медиавложения.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
	MediaSticker   MediaKind = "sticker"
)

// Media — ссылка на уже загруженный файл мессенджера. Пересылается по
// идентификатору без перекодирования.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Button — кнопка инлайн-клавиатуры. Заполняется ровно одно из полей
// действия: CallbackData, URL или SwitchInline.
type Button struct {
	Label        string
	CallbackData string
	URL          string
	SwitchInline string
}

// Keyboard — абстрактная инлайн-клавиатура; в разметку мессенджера её
// переводит транспортный адаптер.
type Keyboard struct {
	Rows [][]Button
}

// Row добавляет ряд кнопок и возвращает клавиатуру для цепочки вызовов.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// Transport — граница с мессенджером. Все ошибки транспорта не фатальны
// и обрабатываются на месте вызова.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)
	SendMedia(ctx context.Context, chatID int64, media Media, caption string, kb *Keyboard) (int, error)
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, kb *Keyboard) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// EditMessage меняет подпись либо текст сообщения — в зависимости от
	// того, что у сообщения есть.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
	ChatMember(ctx context.Context, channelID, userID int64) (MemberStatus, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
	BotUsername() string
}
