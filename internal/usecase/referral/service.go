package referral

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/metrics"
)

// SourceReferralLink — источник записи аудита по умолчанию.
const SourceReferralLink = "referral_link"

// Service ведёт учёт партнёрских кодов и аудит переходов.
type Service struct {
	refs domain.ReferralRepo
	log  zerolog.Logger
}

// NewService создаёт реферальный сервис.
func NewService(refs domain.ReferralRepo, log zerolog.Logger) *Service {
	return &Service{refs: refs, log: log}
}

// Attribute сопоставляет код из deep-link с партнёром. Неизвестный код и
// собственный код посетителя дают органический визит (nil). Переход
// засчитывается только на первом онбординге посетителя: повторные визиты
// и повторы внутри одной сессии счётчик не увеличивают.
func (s *Service) Attribute(ctx context.Context, code string, visitorID int64, firstVisit bool) (*domain.ReferralCode, error) {
	if code == "" {
		return nil, nil
	}
	ref, err := s.refs.GetCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ref.ReferrerID == visitorID {
		return nil, nil
	}
	if firstVisit {
		if err := s.refs.IncrementClicks(ctx, code); err != nil {
			return nil, err
		}
		ref.Clicks++
		metrics.ReferralClicks.Inc()
	}
	return &ref, nil
}

// RecordTracking добавляет неизменяемую запись аудита. Ошибка записи
// логируется и не прерывает основной сценарий.
func (s *Service) RecordTracking(ctx context.Context, referrerID int64, profile domain.TelegramProfile, excerpt string) {
	rec := domain.ReferralTrackingRecord{
		ID:             uuid.NewString(),
		ReferrerID:     referrerID,
		UserID:         profile.UserID,
		Username:       profile.Username,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		MessageExcerpt: excerpt,
		Timestamp:      time.Now().UTC().Unix(),
		Source:         SourceReferralLink,
	}
	if err := s.refs.InsertTracking(ctx, rec); err != nil {
		s.log.Error().Err(err).Int64("referrer", referrerID).Int64("user", profile.UserID).Msg("не удалось записать аудит перехода")
	}
}
