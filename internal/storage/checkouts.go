package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/stack-checkout/internal/models"
)

const checkoutColumns = `id, email, plan_id, tenant, customer_id, subscription_id, user_id, state, last_error, created_at, updated_at`

// CreateCheckout сохраняет новую запись оформления.
func (s *Storage) CreateCheckout(ctx context.Context, c models.Checkout) error {
	const op = "storage.CreateCheckout"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO checkouts (id, email, plan_id, tenant, customer_id, subscription_id, user_id, state, last_error)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := s.DB.ExecContext(ctx, query,
		c.ID, c.Email, c.PlanID, c.Tenant, c.CustomerID, c.SubscriptionID, c.UserID, string(c.State), c.LastError); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateCheckout сохраняет текущее состояние записи оформления.
func (s *Storage) UpdateCheckout(ctx context.Context, c models.Checkout) error {
	const op = "storage.UpdateCheckout"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE checkouts SET
			      customer_id = $1,
			      subscription_id = $2,
			      user_id = $3,
			      state = $4,
			      last_error = $5,
			      updated_at = now()
			  WHERE id = $6`
	res, err := s.DB.ExecContext(ctx, query,
		c.CustomerID, c.SubscriptionID, c.UserID, string(c.State), c.LastError, c.ID)
	return affectedOne(op, res, err, ErrCheckoutNotFound)
}

// GetCheckout возвращает запись оформления по идентификатору.
func (s *Storage) GetCheckout(ctx context.Context, id string) (*models.Checkout, error) {
	const op = "storage.GetCheckout"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkouts WHERE id = $1`, id)
	c, err := scanCheckout(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// GetCheckoutBySubscriptionID возвращает последнюю запись оформления для подписки Stripe.
func (s *Storage) GetCheckoutBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Checkout, error) {
	const op = "storage.GetCheckoutBySubscriptionID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkouts
			  WHERE subscription_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`, subscriptionID)
	c, err := scanCheckout(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func scanCheckout(row *sql.Row) (*models.Checkout, error) {
	var (
		c     models.Checkout
		state string
	)
	err := row.Scan(&c.ID, &c.Email, &c.PlanID, &c.Tenant, &c.CustomerID, &c.SubscriptionID,
		&c.UserID, &state, &c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, err
	}
	c.State = models.CheckoutState(state)
	return &c, nil
}
