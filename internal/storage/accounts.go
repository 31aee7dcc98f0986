package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/stack-checkout/internal/models"
)

// CreateAccount сохраняет новую учетную запись. Email приводится к нижнему регистру.
func (s *Storage) CreateAccount(ctx context.Context, account models.Account) (*models.Account, error) {
	const op = "storage.CreateAccount"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	account.Email = normalizeEmail(account.Email)
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO accounts (uid, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		account.UID, account.Email, account.PasswordHash).Scan(&account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &account, nil
}

// GetAccountByEmail возвращает учетную запись по email.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.DB.QueryRowContext(ctx,
		`SELECT uid, email, password_hash, created_at FROM accounts WHERE email = $1`, normalizeEmail(email))
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// UpdateAccountPassword заменяет хэш пароля.
func (s *Storage) UpdateAccountPassword(ctx context.Context, uid, passwordHash string) error {
	const op = "storage.UpdateAccountPassword"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $1 WHERE uid = $2`, passwordHash, uid)
	return affectedOne(op, res, err, ErrAccountNotFound)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.UID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
