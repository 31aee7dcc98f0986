// Package cancellation отменяет подписки пользователя в Stripe и помечает запись
// пользователя как отмененную.
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

var (
	// ErrNotConfigured платежный шлюз не настроен.
	ErrNotConfigured = errors.New("stripe configuration error")
	// ErrUserNotFound запись пользователя не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrCustomerLookup не удалось найти покупателя в Stripe.
	ErrCustomerLookup = errors.New("failed to find customer in payment system")
)

// Gateway платежный шлюз.
type Gateway interface {
	Configured() bool
	FindCustomerByEmail(ctx context.Context, email string) (*paymentprovider.Customer, error)
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]paymentprovider.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
}

// Users записи пользователей.
type Users interface {
	Get(ctx context.Context, userUID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error
	MarkCanceled(ctx context.Context, userUID string, expireDate *time.Time) error
}

// Publisher публикует уведомления.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Request запрос на отмену. Нужен UserID или Email.
type Request struct {
	UserID           string
	Email            string
	StripeCustomerID string
}

// Result результат отмены.
type Result struct {
	CanceledSubscriptions []string
	ExpireDate            *time.Time
	StripeCustomerID      string
	NoSubscription        bool
}

// Service сервис отмены подписок.
type Service struct {
	log       *slog.Logger
	gateway   Gateway
	users     Users
	publisher Publisher
}

// New создает сервис отмены подписок.
func New(log *slog.Logger, gateway Gateway, users Users, publisher Publisher) *Service {
	return &Service{
		log:       log,
		gateway:   gateway,
		users:     users,
		publisher: publisher,
	}
}

// Cancel отменяет все активные подписки покупателя. Дата окончания доступа равна
// наибольшему концу оплаченного периода среди отмененных подписок.
func (s *Service) Cancel(ctx context.Context, req Request) (*Result, error) {
	const op = "cancellation.Cancel"
	log := s.log.With(sl.Op(op), slog.String("user_id", req.UserID), slog.String("email", req.Email))

	if !s.gateway.Configured() {
		log.Error("stripe secret key is not set")
		return nil, ErrNotConfigured
	}

	user, err := s.findUser(ctx, req)
	if err != nil {
		return nil, err
	}

	email := req.Email
	if email == "" && user != nil {
		email = user.Email
	}

	customerID := req.StripeCustomerID
	if customerID == "" {
		customerID = user.CustomerID()
	}
	if customerID == "" && email != "" {
		customer, err := s.gateway.FindCustomerByEmail(ctx, email)
		switch {
		case errors.Is(err, paymentprovider.ErrCustomerNotFound):
		case err != nil:
			log.Error("failed to search customer", sl.Err(err))
			return nil, fmt.Errorf("%w: %w", ErrCustomerLookup, err)
		default:
			customerID = customer.ID
			if user != nil {
				if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
					log.Warn("failed to store customer id", sl.Err(err))
				}
			}
		}
	}

	res := &Result{CanceledSubscriptions: []string{}, StripeCustomerID: customerID}

	if customerID == "" {
		log.Info("no customer found, nothing to cancel")
		res.NoSubscription = true
		if err := s.markCanceled(ctx, user, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return res, nil
	}
	log = log.With(slog.String("customer_id", customerID))

	subs, err := s.gateway.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, sub := range subs {
		canceled, err := s.gateway.CancelSubscription(ctx, sub.ID)
		if err != nil {
			log.Error("failed to cancel subscription", slog.String("subscription_id", sub.ID), sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res.CanceledSubscriptions = append(res.CanceledSubscriptions, canceled.ID)

		end := canceled.CurrentPeriodEnd
		if end.IsZero() {
			end = sub.CurrentPeriodEnd
		}
		if !end.IsZero() && (res.ExpireDate == nil || end.After(*res.ExpireDate)) {
			t := end
			res.ExpireDate = &t
		}
	}
	res.NoSubscription = len(subs) == 0

	if err := s.markCanceled(ctx, user, res.ExpireDate); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("subscriptions canceled", slog.Int("count", len(res.CanceledSubscriptions)))

	if email != "" && len(res.CanceledSubscriptions) > 0 {
		msg := models.CancellationMessage{Email: email, ExpireDate: res.ExpireDate}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingSubscriptionCanceled, msg); err != nil {
			log.Error("failed to publish cancellation notice", sl.Err(err))
		}
	}

	return res, nil
}

// findUser возвращает запись пользователя. Для запроса по email отсутствие записи
// не ошибка.
func (s *Service) findUser(ctx context.Context, req Request) (*models.User, error) {
	const op = "cancellation.findUser"

	if req.UserID != "" {
		user, err := s.users.Get(ctx, req.UserID)
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return user, nil
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// markCanceled помечает пользователя отмененным. Повторная отмена без подписок
// не стирает сохраненную дату окончания доступа.
func (s *Service) markCanceled(ctx context.Context, user *models.User, expireDate *time.Time) error {
	if user == nil {
		return nil
	}
	if user.Status == models.StatusCanceled && expireDate == nil {
		return nil
	}
	return s.users.MarkCanceled(ctx, user.ID, expireDate)
}
