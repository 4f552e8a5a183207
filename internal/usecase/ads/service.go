package ads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/metrics"
)

// firstAdvSentinel — значение курсора «начать кольцо сначала».
const firstAdvSentinel = 1

// DefaultCursorTTL — время жизни курсора в кэше.
const DefaultCursorTTL = time.Hour

// Service выдаёт следующий рекламный пост по кольцу ротации.
// Курсор пользователя читается через кэш (cache-aside); хранилище
// остаётся источником истины, расхождение лечится следующим чтением.
type Service struct {
	users     domain.UserRepo
	adv       domain.AdRepo
	cache     domain.Cache
	transport domain.Transport
	ttl       time.Duration
	log       zerolog.Logger
}

// NewService создаёт планировщик ротации.
func NewService(users domain.UserRepo, adv domain.AdRepo, cache domain.Cache, transport domain.Transport, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCursorTTL
	}
	return &Service{users: users, adv: adv, cache: cache, transport: transport, ttl: ttl, log: log}
}

func cursorKey(userID int64) string {
	return fmt.Sprintf("user_adv_id_%d", userID)
}

// readCursor читает курсор сперва из кэша, при промахе — из хранилища
// с обратной записью в кэш. Ошибки кэша маскируются чтением из БД.
func (s *Service) readCursor(ctx context.Context, userID int64) (int64, error) {
	if raw, err := s.cache.Get(ctx, cursorKey(userID)); err == nil {
		if cursor, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return cursor, nil
		}
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.log.Debug().Err(err).Int64("user", userID).Msg("кэш курсора недоступен, читаем из БД")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("получение пользователя: %w", err)
	}
	s.writeCursorCache(ctx, userID, user.AdvID)
	return user.AdvID, nil
}

func (s *Service) writeCursorCache(ctx context.Context, userID, cursor int64) {
	if err := s.cache.Set(ctx, cursorKey(userID), strconv.FormatInt(cursor, 10), s.ttl); err != nil {
		s.log.Debug().Err(err).Int64("user", userID).Msg("не удалось записать курсор в кэш")
	}
}

// Advance выбирает текущий пост кольца, продвигает курсор и сохраняет
// его в БД и кэш. Возвращает nil, если кольцо пусто. Удалённые посты
// прозрачно пропускаются: берётся ближайший больший уцелевший AdvID,
// при его отсутствии кольцо замыкается на минимальный.
func (s *Service) Advance(ctx context.Context, userID int64) (*domain.Advertisement, error) {
	cursor, err := s.readCursor(ctx, userID)
	if err != nil {
		return nil, err
	}

	current, err := s.resolveCurrent(ctx, cursor)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	nextID := int64(firstAdvSentinel)
	next, err := s.adv.NextAd(ctx, current.AdvID)
	switch {
	case err == nil:
		nextID = next.AdvID
	case errors.Is(err, domain.ErrNotFound):
		// конец кольца, начинаем сначала
	default:
		return nil, fmt.Errorf("следующий пост кольца: %w", err)
	}

	if err := s.users.SetAdCursor(ctx, userID, nextID); err != nil {
		return nil, fmt.Errorf("сохранение курсора: %w", err)
	}
	s.writeCursorCache(ctx, userID, nextID)

	return &current, nil
}

// resolveCurrent находит пост, на который указывает курсор.
func (s *Service) resolveCurrent(ctx context.Context, cursor int64) (domain.Advertisement, error) {
	if cursor == firstAdvSentinel {
		return s.adv.FirstAd(ctx)
	}

	// Курсор за пределами кольца: пост удалили, сразу замыкаемся.
	if max, err := s.adv.MaxAdvID(ctx); err == nil && cursor > max {
		return s.adv.FirstAd(ctx)
	}

	current, err := s.adv.GetAd(ctx, cursor)
	if errors.Is(err, domain.ErrNotFound) {
		current, err = s.adv.NextAd(ctx, cursor)
		if errors.Is(err, domain.ErrNotFound) {
			return s.adv.FirstAd(ctx)
		}
	}
	return current, err
}

// Show продвигает кольцо и доставляет текущий пост пользователю в
// родной для типа содержимого форме. Ошибки доставки не фатальны.
func (s *Service) Show(ctx context.Context, userID int64) {
	ad, err := s.Advance(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("не удалось продвинуть рекламное кольцо")
		return
	}
	if ad == nil {
		return
	}

	switch ad.ContentType {
	case domain.AdContentPhoto:
		_, err = s.transport.SendMedia(ctx, userID, domain.Media{Kind: domain.MediaPhoto, FileID: ad.Content}, ad.Caption, nil)
	case domain.AdContentVideo:
		_, err = s.transport.SendMedia(ctx, userID, domain.Media{Kind: domain.MediaVideo, FileID: ad.Content}, ad.Caption, nil)
	case domain.AdContentDocument:
		_, err = s.transport.SendMedia(ctx, userID, domain.Media{Kind: domain.MediaDocument, FileID: ad.Content}, ad.Caption, nil)
	case domain.AdContentText:
		_, err = s.transport.SendText(ctx, userID, ad.Content, nil)
	default:
		s.log.Warn().Str("content_type", string(ad.ContentType)).Int64("adv", ad.AdvID).Msg("неизвестный тип рекламного поста")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Int64("adv", ad.AdvID).Msg("не удалось показать рекламный пост")
		return
	}
	metrics.AdImpressions.Inc()
}
