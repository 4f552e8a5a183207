package relay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Виды callback-действий. Данные кнопки кодируются строкой
// "вид:поля" — формат должен умещаться в 64 байта Bot API.
const (
	// CallbackReply — получатель отвечает на анонимное сообщение.
	CallbackReply = "reply"
	// CallbackSendAgain — отправитель пишет ещё одно сообщение тому же адресату.
	CallbackSendAgain = "again"
	// CallbackGetLink — выдача персональной ссылки.
	CallbackGetLink = "link"
	// CallbackShareLink — кнопки шаринга персональной ссылки.
	CallbackShareLink = "share"
	// CallbackStart — возобновление отложенного /start после подписки.
	CallbackStart = "start"
)

// ErrCallbackInvalid возвращается при неразборчивых данных кнопки.
var ErrCallbackInvalid = errors.New("некорректные данные callback")

// Callback — разобранные данные инлайн-кнопки.
type Callback struct {
	Kind            string
	RefererID       int64
	SenderID        int64
	OriginMessageID int
	CheckMy         bool
	StartParam      string
}

// Pack кодирует данные кнопки в строку.
func (c Callback) Pack() string {
	switch c.Kind {
	case CallbackReply:
		return fmt.Sprintf("reply:%d:%d:%d", c.SenderID, c.RefererID, c.OriginMessageID)
	case CallbackSendAgain:
		return fmt.Sprintf("again:%d", c.RefererID)
	case CallbackGetLink:
		mode := "get"
		if c.CheckMy {
			mode = "my"
		}
		return fmt.Sprintf("link:%d:%s", c.RefererID, mode)
	case CallbackShareLink:
		return fmt.Sprintf("share:%d", c.RefererID)
	case CallbackStart:
		return "start:" + c.StartParam
	default:
		return ""
	}
}

// ParseCallback разбирает строку данных кнопки.
func ParseCallback(data string) (Callback, error) {
	kind, rest, _ := strings.Cut(data, ":")
	switch kind {
	case CallbackReply:
		parts := strings.Split(rest, ":")
		if len(parts) != 3 {
			return Callback{}, ErrCallbackInvalid
		}
		sender, err1 := strconv.ParseInt(parts[0], 10, 64)
		referer, err2 := strconv.ParseInt(parts[1], 10, 64)
		origin, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return Callback{}, ErrCallbackInvalid
		}
		return Callback{Kind: kind, SenderID: sender, RefererID: referer, OriginMessageID: origin}, nil
	case CallbackSendAgain, CallbackShareLink:
		referer, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Callback{}, ErrCallbackInvalid
		}
		return Callback{Kind: kind, RefererID: referer}, nil
	case CallbackGetLink:
		idRaw, mode, ok := strings.Cut(rest, ":")
		if !ok {
			return Callback{}, ErrCallbackInvalid
		}
		referer, err := strconv.ParseInt(idRaw, 10, 64)
		if err != nil || (mode != "my" && mode != "get") {
			return Callback{}, ErrCallbackInvalid
		}
		return Callback{Kind: kind, RefererID: referer, CheckMy: mode == "my"}, nil
	case CallbackStart:
		return Callback{Kind: kind, StartParam: rest}, nil
	default:
		return Callback{}, ErrCallbackInvalid
	}
}
