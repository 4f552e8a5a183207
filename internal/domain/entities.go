package domain

import "time"

// User описывает пользователя Telegram в системе.
type User struct {
	ID         int64
	FirstStart bool
	AdvID      int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SponsorChannel описывает спонсорский канал, подписка на который
// обязательна перед любой пересылкой анонимных сообщений.
type SponsorChannel struct {
	ChannelID   int64
	URL         string
	Name        string
	Subscribers int64
}

// ReferralCode описывает партнёрский код из deep-link /start.
type ReferralCode struct {
	Code       string
	ReferrerID int64
	Clicks     int64
}

// AdContentType задаёт тип содержимого рекламного поста.
type AdContentType string

const (
	AdContentPhoto    AdContentType = "photo"
	AdContentVideo    AdContentType = "video"
	AdContentDocument AdContentType = "document"
	AdContentText     AdContentType = "text"
)

// Advertisement — рекламный пост из кольца ротации. Посты упорядочены
// по AdvID, идентификаторы не обязаны идти подряд.
type Advertisement struct {
	AdvID       int64
	ContentType AdContentType
	Content     string
	Caption     string
}

// ReferralTrackingRecord — неизменяемая запись аудита о визите по
// реферальной ссылке. Записывается один раз, никогда не обновляется.
type ReferralTrackingRecord struct {
	ID             string
	ReferrerID     int64
	UserID         int64
	Username       string
	FirstName      string
	LastName       string
	MessageExcerpt string
	Timestamp      int64
	Source         string
}

// TelegramProfile содержит поля профиля из входящего апдейта.
type TelegramProfile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}
