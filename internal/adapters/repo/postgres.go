package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"anon-ask-bot/internal/domain"
	"anon-ask-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureUser реализует domain.UserRepo.
func (p *Postgres) EnsureUser(ctx context.Context, profile domain.TelegramProfile) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		user      domain.User
		username  sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (id, username, first_name, last_name)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''))
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, updated_at = now()
RETURNING id, first_start, adv_id, username, first_name, last_name, created_at, updated_at
`, profile.UserID, profile.Username, profile.FirstName, profile.LastName).
		Scan(&user.ID, &user.FirstStart, &user.AdvID, &username, &firstName, &lastName, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, err
	}
	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	return user, nil
}

// GetUser возвращает пользователя по идентификатору.
func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		user      domain.User
		username  sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, first_start, adv_id, username, first_name, last_name, created_at, updated_at
FROM users WHERE id = $1
`, id).Scan(&user.ID, &user.FirstStart, &user.AdvID, &username, &firstName, &lastName, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	return user, nil
}

// MarkStarted сбрасывает first_start не более одного раза.
func (p *Postgres) MarkStarted(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE users SET first_start = FALSE, updated_at = now()
WHERE id = $1 AND first_start
`, id)
	metrics.ObserveNetworkRequest("postgres", "users_mark_started", "users", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetAdCursor сохраняет курсор рекламной ротации пользователя.
func (p *Postgres) SetAdCursor(ctx context.Context, id, advID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET adv_id = $2, updated_at = now() WHERE id = $1`, id, advID)
	metrics.ObserveNetworkRequest("postgres", "users_set_ad_cursor", "users", start, err)
	return err
}

// ListChannels реализует domain.ChannelRepo.
func (p *Postgres) ListChannels(ctx context.Context) ([]domain.SponsorChannel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT channel_id, url, name, subs FROM channels ORDER BY channel_id`)
	metrics.ObserveNetworkRequest("postgres", "channels_list", "channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []domain.SponsorChannel
	for rows.Next() {
		var ch domain.SponsorChannel
		if err := rows.Scan(&ch.ChannelID, &ch.URL, &ch.Name, &ch.Subscribers); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// AddSubscriber идемпотентно добавляет пользователя в подписчики канала.
// Счётчик subs увеличивается только когда вставка реально произошла,
// поэтому пара (канал, пользователь) учитывается не более одного раза.
func (p *Postgres) AddSubscriber(ctx context.Context, channelID, userID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
WITH ins AS (
    INSERT INTO channel_subscribers (channel_id, user_id)
    VALUES ($1, $2)
    ON CONFLICT (channel_id, user_id) DO NOTHING
    RETURNING 1
)
UPDATE channels SET subs = subs + 1
WHERE channel_id = $1 AND EXISTS (SELECT 1 FROM ins)
`, channelID, userID)
	metrics.ObserveNetworkRequest("postgres", "channels_add_subscriber", "channels", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetCode реализует domain.ReferralRepo.
func (p *Postgres) GetCode(ctx context.Context, code string) (domain.ReferralCode, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var ref domain.ReferralCode
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, referrer_id, clicks FROM referrals WHERE id = $1`, code).
		Scan(&ref.Code, &ref.ReferrerID, &ref.Clicks)
	metrics.ObserveNetworkRequest("postgres", "referrals_get", "referrals", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReferralCode{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ReferralCode{}, err
	}
	return ref, nil
}

// IncrementClicks атомарно увеличивает счётчик переходов по коду.
func (p *Postgres) IncrementClicks(ctx context.Context, code string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE referrals SET clicks = clicks + 1 WHERE id = $1`, code)
	metrics.ObserveNetworkRequest("postgres", "referrals_increment", "referrals", start, err)
	return err
}

// InsertTracking добавляет запись аудита перехода. Записи только
// добавляются, никогда не обновляются и не удаляются.
func (p *Postgres) InsertTracking(ctx context.Context, rec domain.ReferralTrackingRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO referral_tracking (id, referrer_id, user_id, username, first_name, last_name, message_excerpt, ts, source)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), $8, $9)
`, rec.ID, rec.ReferrerID, rec.UserID, rec.Username, rec.FirstName, rec.LastName, rec.MessageExcerpt, rec.Timestamp, rec.Source)
	metrics.ObserveNetworkRequest("postgres", "referral_tracking_insert", "referral_tracking", start, err)
	return err
}

func (p *Postgres) scanAd(row pgx.Row) (domain.Advertisement, error) {
	var (
		ad      domain.Advertisement
		caption sql.NullString
	)
	err := row.Scan(&ad.AdvID, &ad.ContentType, &ad.Content, &caption)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Advertisement{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Advertisement{}, err
	}
	ad.Caption = caption.String
	return ad, nil
}

// GetAd реализует domain.AdRepo.
func (p *Postgres) GetAd(ctx context.Context, advID int64) (domain.Advertisement, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	ad, err := p.scanAd(p.pool.QueryRow(ctx, `SELECT adv_id, content_type, content, caption FROM adv WHERE adv_id = $1`, advID))
	metrics.ObserveNetworkRequest("postgres", "adv_get", "adv", start, err)
	return ad, err
}

// FirstAd возвращает пост с минимальным AdvID.
func (p *Postgres) FirstAd(ctx context.Context) (domain.Advertisement, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	ad, err := p.scanAd(p.pool.QueryRow(ctx, `SELECT adv_id, content_type, content, caption FROM adv ORDER BY adv_id ASC LIMIT 1`))
	metrics.ObserveNetworkRequest("postgres", "adv_first", "adv", start, err)
	return ad, err
}

// NextAd возвращает пост с наименьшим AdvID строго больше указанного.
func (p *Postgres) NextAd(ctx context.Context, after int64) (domain.Advertisement, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	ad, err := p.scanAd(p.pool.QueryRow(ctx, `SELECT adv_id, content_type, content, caption FROM adv WHERE adv_id > $1 ORDER BY adv_id ASC LIMIT 1`, after))
	metrics.ObserveNetworkRequest("postgres", "adv_next", "adv", start, err)
	return ad, err
}

// MaxAdvID возвращает максимальный AdvID кольца; 0 — кольцо пусто.
func (p *Postgres) MaxAdvID(ctx context.Context) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var max int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(adv_id), 0) FROM adv`).Scan(&max)
	metrics.ObserveNetworkRequest("postgres", "adv_max", "adv", start, err)
	if err != nil {
		return 0, err
	}
	return max, nil
}
