package domain

import "errors"

// SessionState — состояние диалога пользователя.
type SessionState int

const (
	// SessionIdle — нет незавершённого набора сообщения.
	SessionIdle SessionState = iota
	// SessionAwaitingMessage — следующее свободное сообщение пользователя
	// трактуется как полезная нагрузка для пересылки.
	SessionAwaitingMessage
)

// RelayAction — направление пересылки внутри одного цикла.
type RelayAction string

const (
	// ActionSend — сообщение уходит владельцу ссылки.
	ActionSend RelayAction = "send"
	// ActionReply — ответ уходит исходному отправителю.
	ActionReply RelayAction = "reply"
)

// ErrSessionInvalid возвращается при нарушении фиксированного набора
// полей состояния.
var ErrSessionInvalid = errors.New("некорректное состояние сессии")

// Session — эфемерный контекст одного цикла пересылки. На пользователя
// существует не более одной сессии; новая запись замещает старую.
type Session struct {
	UserID          int64
	State           SessionState
	Action          RelayAction
	RefererID       int64
	SenderID        int64
	PromptMessageID int
	ReplyTargetID   int
}

// Validate проверяет фиксированный набор полей для каждого состояния.
func (s Session) Validate() error {
	switch s.State {
	case SessionIdle:
		return nil
	case SessionAwaitingMessage:
		if s.UserID == 0 {
			return ErrSessionInvalid
		}
		switch s.Action {
		case ActionSend:
			return nil
		case ActionReply:
			if s.SenderID == 0 {
				return ErrSessionInvalid
			}
			return nil
		default:
			return ErrSessionInvalid
		}
	default:
		return ErrSessionInvalid
	}
}
