package referral

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
)

type stubRepo struct {
	codes     map[string]domain.ReferralCode
	clicks    map[string]int
	tracking  []domain.ReferralTrackingRecord
	insertErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{codes: make(map[string]domain.ReferralCode), clicks: make(map[string]int)}
}

func (s *stubRepo) GetCode(_ context.Context, code string) (domain.ReferralCode, error) {
	ref, ok := s.codes[code]
	if !ok {
		return domain.ReferralCode{}, domain.ErrNotFound
	}
	return ref, nil
}

func (s *stubRepo) IncrementClicks(_ context.Context, code string) error {
	s.clicks[code]++
	return nil
}

func (s *stubRepo) InsertTracking(_ context.Context, rec domain.ReferralTrackingRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.tracking = append(s.tracking, rec)
	return nil
}

func TestAttributeCountsFirstVisit(t *testing.T) {
	repo := newStubRepo()
	repo.codes["promo"] = domain.ReferralCode{Code: "promo", ReferrerID: 99, Clicks: 5}
	svc := NewService(repo, zerolog.Nop())

	ref, err := svc.Attribute(context.Background(), "promo", 10, true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ref == nil || ref.ReferrerID != 99 {
		t.Fatalf("ожидали атрибуцию на партнёра 99, получили %+v", ref)
	}
	if repo.clicks["promo"] != 1 {
		t.Fatalf("ожидали один засчитанный переход")
	}
	if ref.Clicks != 6 {
		t.Fatalf("возвращаемый код должен отражать инкремент, получили %d", ref.Clicks)
	}
}

func TestAttributeRepeatVisitNotCounted(t *testing.T) {
	repo := newStubRepo()
	repo.codes["promo"] = domain.ReferralCode{Code: "promo", ReferrerID: 99}
	svc := NewService(repo, zerolog.Nop())

	ref, err := svc.Attribute(context.Background(), "promo", 10, false)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ref == nil {
		t.Fatalf("атрибуция работает и на повторном визите")
	}
	if repo.clicks["promo"] != 0 {
		t.Fatalf("повторный визит не увеличивает счётчик")
	}
}

func TestAttributeUnknownCodeIsOrganic(t *testing.T) {
	svc := NewService(newStubRepo(), zerolog.Nop())
	ref, err := svc.Attribute(context.Background(), "ghost", 10, true)
	if err != nil {
		t.Fatalf("неизвестный код не ошибка: %v", err)
	}
	if ref != nil {
		t.Fatalf("неизвестный код даёт органический визит")
	}
}

func TestAttributeOwnCodeIsOrganic(t *testing.T) {
	repo := newStubRepo()
	repo.codes["mine"] = domain.ReferralCode{Code: "mine", ReferrerID: 10}
	svc := NewService(repo, zerolog.Nop())

	ref, err := svc.Attribute(context.Background(), "mine", 10, true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ref != nil {
		t.Fatalf("собственный код не атрибутируется")
	}
	if repo.clicks["mine"] != 0 {
		t.Fatalf("собственный код не увеличивает счётчик")
	}
}

func TestRecordTrackingFillsRecord(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, zerolog.Nop())

	profile := domain.TelegramProfile{UserID: 10, Username: "visitor", FirstName: "Ann"}
	svc.RecordTracking(context.Background(), 99, profile, "привет")

	if len(repo.tracking) != 1 {
		t.Fatalf("ожидали одну запись аудита")
	}
	rec := repo.tracking[0]
	if rec.ID == "" {
		t.Fatalf("запись должна получить идентификатор")
	}
	if rec.ReferrerID != 99 || rec.UserID != 10 || rec.MessageExcerpt != "привет" {
		t.Fatalf("поля записи заполнены неверно: %+v", rec)
	}
	if rec.Source != SourceReferralLink {
		t.Fatalf("ожидали источник %q, получили %q", SourceReferralLink, rec.Source)
	}
	if rec.Timestamp == 0 {
		t.Fatalf("ожидали метку времени")
	}
}

func TestRecordTrackingSwallowsError(t *testing.T) {
	repo := newStubRepo()
	repo.insertErr = errors.New("бд недоступна")
	svc := NewService(repo, zerolog.Nop())

	svc.RecordTracking(context.Background(), 99, domain.TelegramProfile{UserID: 10}, "")
}
