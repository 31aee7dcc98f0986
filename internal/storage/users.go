package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/stack-checkout/internal/models"
)

const userColumns = `id, email, plan_id, stripe_customer_id, status, expire_date, created_at, updated_at`

// SaveUser создает или перезаписывает запись пользователя.
func (s *Storage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.SaveUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO users (id, email, plan_id, stripe_customer_id, status, expire_date)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (id) DO UPDATE SET
			      email = EXCLUDED.email,
			      plan_id = EXCLUDED.plan_id,
			      stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, users.stripe_customer_id),
			      status = EXCLUDED.status,
			      expire_date = EXCLUDED.expire_date,
			      updated_at = now()`
	var expire sql.NullTime
	if user.ExpireDate != nil {
		expire = sql.NullTime{Time: *user.ExpireDate, Valid: true}
	}
	if _, err := s.DB.ExecContext(ctx, query,
		user.ID, user.Email, user.PlanID, nullString(user.StripeCustomerID), user.Status, expire); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает запись пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userUID)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает самую свежую запись пользователя с данным email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users
			  WHERE lower(email) = $1
			  ORDER BY created_at DESC
			  LIMIT 1`, strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetStripeCustomerID сохраняет ссылку на покупателя Stripe.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = now() WHERE id = $2`,
		customerID, userUID)
	return affectedOne(op, res, err, ErrUserNotFound)
}

// MarkUserCanceled выставляет статус canceled и дату окончания доступа.
func (s *Storage) MarkUserCanceled(ctx context.Context, userUID string, expireDate *time.Time) error {
	const op = "storage.MarkUserCanceled"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	var expire sql.NullTime
	if expireDate != nil {
		expire = sql.NullTime{Time: *expireDate, Valid: true}
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET status = $1, expire_date = $2, updated_at = now() WHERE id = $3`,
		models.StatusCanceled, expire, userUID)
	return affectedOne(op, res, err, ErrUserNotFound)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u          models.User
		customerID sql.NullString
		expire     sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PlanID, &customerID, &u.Status, &expire, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		u.StripeCustomerID = &customerID.String
	}
	if expire.Valid {
		t := expire.Time.UTC()
		u.ExpireDate = &t
	}
	return &u, nil
}

func affectedOne(op string, res sql.Result, err error, notFound error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
