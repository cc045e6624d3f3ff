package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BatmanBruc/bat-bot-neuro/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

var ErrAccountNotFound = errors.New("account not found")

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "bot_neuro"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "bot_neuro"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStore) GetOrCreateAccount(ctx context.Context, telegramID int64, username, fullName string) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var a types.Account
	err := s.pool.QueryRow(ctx, `
INSERT INTO users (telegram_id, username, full_name)
VALUES ($1, $2, $3)
ON CONFLICT (telegram_id) DO UPDATE SET
  username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
  full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), users.full_name),
  updated_at = NOW()
RETURNING telegram_id, username, full_name, text_usage, image_usage, premium_until, joined_at
`, telegramID, strings.TrimSpace(username), strings.TrimSpace(fullName)).
		Scan(&a.TelegramID, &a.Username, &a.FullName, &a.TextUsage, &a.ImageUsage, &a.PremiumUntil, &a.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, telegramID int64, kind types.UsageKind) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	column := "text_usage"
	if kind == types.UsageImage {
		column = "image_usage"
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
UPDATE users
SET %s = %s + 1, updated_at = NOW()
WHERE telegram_id = $1
`, column, column), telegramID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ExtendPremium adds days of premium on top of whatever remains. The row is
// locked for the read-modify-write so concurrent extends for the same account
// never lose time. Base is the later of now and the current expiry: an expired
// subscription restarts from now, an active one grows from its end.
func (s *PostgresStore) ExtendPremium(ctx context.Context, telegramID int64, days int) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newUntil, err := extendPremiumTx(ctx, tx, telegramID, days)
	if err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return newUntil, nil
}

func extendPremiumTx(ctx context.Context, tx pgx.Tx, telegramID int64, days int) (time.Time, error) {
	now := time.Now().UTC()
	var current *time.Time
	err := tx.QueryRow(ctx, `
SELECT premium_until
FROM users
WHERE telegram_id = $1
FOR UPDATE
`, telegramID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrAccountNotFound
		}
		return time.Time{}, err
	}

	base := now
	if current != nil && current.After(base) {
		base = *current
	}
	newUntil := base.Add(time.Duration(days) * 24 * time.Hour)

	_, err = tx.Exec(ctx, `
UPDATE users
SET premium_until = $2, updated_at = NOW()
WHERE telegram_id = $1
`, telegramID, newUntil)
	if err != nil {
		return time.Time{}, err
	}
	return newUntil, nil
}

func (s *PostgresStore) RevokePremium(ctx context.Context, telegramID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
UPDATE users
SET premium_until = NOW() - INTERVAL '1 day', updated_at = NOW()
WHERE telegram_id = $1
`, telegramID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ApplyPayment records the payment id and extends premium in one transaction.
// When the extend fails the rollback also discards the idempotency row, so the
// provider's redelivery of the same payment can still grant the time.
func (s *PostgresStore) ApplyPayment(ctx context.Context, p types.AppliedPayment) (applied bool, newUntil time.Time, err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO applied_payments (payment_id, telegram_id, tariff_id, amount, duration_days)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (payment_id) DO NOTHING
`, strings.TrimSpace(p.PaymentID), p.TelegramID, p.TariffID, strings.TrimSpace(p.Amount), p.DurationDays)
	if err != nil {
		return false, time.Time{}, err
	}
	if tag.RowsAffected() == 0 {
		return false, time.Time{}, nil
	}

	newUntil, err = extendPremiumTx(ctx, tx, p.TelegramID, p.DurationDays)
	if err != nil {
		return false, time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, time.Time{}, err
	}
	return true, newUntil, nil
}

func (s *PostgresStore) ListAccountIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT telegram_id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) AggregateStats(ctx context.Context) (*types.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var st types.Stats
	err := s.pool.QueryRow(ctx, `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE premium_until > NOW()),
  COALESCE(SUM(text_usage), 0),
  COALESCE(SUM(image_usage), 0)
FROM users
`).Scan(&st.TotalUsers, &st.ActivePremium, &st.TotalText, &st.TotalImages)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) ListActiveTariffs(ctx context.Context) ([]types.Tariff, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id, name, description, price, duration_days, is_active
FROM tariffs
WHERE is_active
ORDER BY price ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []types.Tariff
	for rows.Next() {
		var t types.Tariff
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.DurationDays, &t.IsActive); err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, rows.Err()
}

func (s *PostgresStore) GetTariff(ctx context.Context, id int64) (*types.Tariff, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var t types.Tariff
	err := s.pool.QueryRow(ctx, `
SELECT id, name, description, price, duration_days, is_active
FROM tariffs
WHERE id = $1
`, id).Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.DurationDays, &t.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
