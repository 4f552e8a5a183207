package ads

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
)

type stubUsers struct {
	advID    int64
	getCalls int
	saved    []int64
}

func (s *stubUsers) EnsureUser(_ context.Context, p domain.TelegramProfile) (domain.User, error) {
	return domain.User{ID: p.UserID}, nil
}

func (s *stubUsers) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.getCalls++
	return domain.User{ID: id, AdvID: s.advID}, nil
}

func (s *stubUsers) MarkStarted(context.Context, int64) (bool, error) { return false, nil }

func (s *stubUsers) SetAdCursor(_ context.Context, _, advID int64) error {
	s.saved = append(s.saved, advID)
	return nil
}

type ringAds struct {
	ads map[int64]domain.Advertisement
}

func newRing(ids ...int64) *ringAds {
	r := &ringAds{ads: make(map[int64]domain.Advertisement)}
	for _, id := range ids {
		r.ads[id] = domain.Advertisement{AdvID: id, ContentType: domain.AdContentText, Content: "пост"}
	}
	return r
}

func (r *ringAds) GetAd(_ context.Context, advID int64) (domain.Advertisement, error) {
	ad, ok := r.ads[advID]
	if !ok {
		return domain.Advertisement{}, domain.ErrNotFound
	}
	return ad, nil
}

func (r *ringAds) FirstAd(ctx context.Context) (domain.Advertisement, error) {
	return r.NextAd(ctx, 0)
}

func (r *ringAds) NextAd(_ context.Context, after int64) (domain.Advertisement, error) {
	var best int64
	for id := range r.ads {
		if id > after && (best == 0 || id < best) {
			best = id
		}
	}
	if best == 0 {
		return domain.Advertisement{}, domain.ErrNotFound
	}
	return r.ads[best], nil
}

func (r *ringAds) MaxAdvID(context.Context) (int64, error) {
	var max int64
	for id := range r.ads {
		if id > max {
			max = id
		}
	}
	return max, nil
}

type mapCache struct {
	m map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]string)} }

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	val, ok := c.m[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return val, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.m[key] = value
	return nil
}

func newTestService(users *stubUsers, ring *ringAds, cache *mapCache) *Service {
	return NewService(users, ring, cache, nil, time.Hour, zerolog.Nop())
}

func TestAdvanceWalksRingAndWraps(t *testing.T) {
	users := &stubUsers{}
	svc := newTestService(users, newRing(1, 3, 7), newMapCache())
	ctx := context.Background()

	var seen []int64
	for i := 0; i < 4; i++ {
		ad, err := svc.Advance(ctx, 10)
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if ad == nil {
			t.Fatalf("кольцо непустое, пост обязан найтись")
		}
		seen = append(seen, ad.AdvID)
	}

	want := []int64{1, 3, 7, 1}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("ожидали порядок %v, получили %v", want, seen)
		}
	}
}

func TestAdvanceUsesCachedCursor(t *testing.T) {
	users := &stubUsers{}
	cache := newMapCache()
	cache.m["user_adv_id_10"] = "3"
	svc := newTestService(users, newRing(1, 3, 7), cache)

	ad, err := svc.Advance(context.Background(), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ad.AdvID != 3 {
		t.Fatalf("ожидали пост из кэшированного курсора, получили %d", ad.AdvID)
	}
	if users.getCalls != 0 {
		t.Fatalf("при попадании в кэш БД читаться не должна")
	}
}

func TestAdvanceSkipsDeletedPost(t *testing.T) {
	cache := newMapCache()
	cache.m["user_adv_id_10"] = "4"
	svc := newTestService(&stubUsers{}, newRing(1, 3, 7), cache)

	ad, err := svc.Advance(context.Background(), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ad.AdvID != 7 {
		t.Fatalf("удалённый пост пропускается вперёд, ожидали 7, получили %d", ad.AdvID)
	}
}

func TestAdvanceWrapsWhenCursorBeyondRing(t *testing.T) {
	cache := newMapCache()
	cache.m["user_adv_id_10"] = "9"
	svc := newTestService(&stubUsers{}, newRing(1, 3, 7), cache)

	ad, err := svc.Advance(context.Background(), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ad.AdvID != 1 {
		t.Fatalf("курсор за кольцом замыкается на минимум, получили %d", ad.AdvID)
	}
}

func TestAdvanceEmptyRing(t *testing.T) {
	svc := newTestService(&stubUsers{}, newRing(), newMapCache())

	ad, err := svc.Advance(context.Background(), 10)
	if err != nil {
		t.Fatalf("пустое кольцо не ошибка: %v", err)
	}
	if ad != nil {
		t.Fatalf("из пустого кольца постов не бывает")
	}
}

func TestAdvancePersistsCursor(t *testing.T) {
	users := &stubUsers{}
	cache := newMapCache()
	svc := newTestService(users, newRing(1, 3), cache)

	if _, err := svc.Advance(context.Background(), 10); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(users.saved) != 1 || users.saved[0] != 3 {
		t.Fatalf("курсор должен сохраниться в БД, получили %v", users.saved)
	}
	if cache.m["user_adv_id_10"] != "3" {
		t.Fatalf("курсор должен сохраниться в кэш, получили %q", cache.m["user_adv_id_10"])
	}
}
