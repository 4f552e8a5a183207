package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, когда документ отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// ErrCacheMiss возвращается кэшем при отсутствии ключа.
var ErrCacheMiss = errors.New("ключ не найден в кэше")

// UserRepo управляет пользователями.
type UserRepo interface {
	// EnsureUser создаёт пользователя при первом контакте и обновляет
	// поля профиля при повторных.
	EnsureUser(ctx context.Context, profile TelegramProfile) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	// MarkStarted сбрасывает first_start; возвращает true, если флаг
	// был сброшен именно этим вызовом.
	MarkStarted(ctx context.Context, id int64) (bool, error)
	SetAdCursor(ctx context.Context, id, advID int64) error
}

// ChannelRepo управляет спонсорскими каналами.
type ChannelRepo interface {
	ListChannels(ctx context.Context) ([]SponsorChannel, error)
	// AddSubscriber идемпотентно добавляет пользователя в множество
	// подписчиков; счётчик увеличивается только при первом добавлении.
	// Возвращает true, если пользователь был добавлен этим вызовом.
	AddSubscriber(ctx context.Context, channelID, userID int64) (bool, error)
}

// ReferralRepo управляет партнёрскими кодами и аудитом переходов.
type ReferralRepo interface {
	GetCode(ctx context.Context, code string) (ReferralCode, error)
	IncrementClicks(ctx context.Context, code string) error
	InsertTracking(ctx context.Context, rec ReferralTrackingRecord) error
}

// AdRepo управляет кольцом рекламных постов. Навигация по кольцу —
// три запроса: минимальный, следующий больший и максимальный AdvID.
type AdRepo interface {
	GetAd(ctx context.Context, advID int64) (Advertisement, error)
	FirstAd(ctx context.Context) (Advertisement, error)
	NextAd(ctx context.Context, after int64) (Advertisement, error)
	MaxAdvID(ctx context.Context) (int64, error)
}

// Cache — вспомогательный TTL-кэш. Ошибки кэша не фатальны: вызывающая
// сторона обязана деградировать до чтения из хранилища.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
