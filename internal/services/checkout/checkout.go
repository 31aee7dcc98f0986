// Package checkout реализует оформление подписки: создание неполной подписки в Stripe
// и выдачу доступа после подтвержденной оплаты. Каждый шаг фиксируется в записи
// оформления, чтобы частично выполненные оформления можно было диагностировать.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/metrics"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

var (
	// ErrNotConfigured платежный шлюз не настроен.
	ErrNotConfigured = errors.New("stripe configuration error")
	// ErrInvalidPlan неизвестный план.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrPriceNotConfigured для известного плана не задана цена.
	ErrPriceNotConfigured = errors.New("price is not configured for plan")
	// ErrConnection проверка соединения со Stripe не прошла.
	ErrConnection = errors.New("stripe connection failed")
	// ErrPaymentSetup не удалось создать подписку.
	ErrPaymentSetup = errors.New("payment setup failed")
	// ErrCheckoutNotFound запись оформления для подписки не найдена.
	ErrCheckoutNotFound = errors.New("checkout not found")
	// ErrEmailMismatch email не совпадает с email оформления.
	ErrEmailMismatch = errors.New("email does not match checkout")
	// ErrPaymentNotConfirmed счет подписки еще не оплачен.
	ErrPaymentNotConfirmed = errors.New("payment is not confirmed")
)

// Gateway платежный шлюз.
type Gateway interface {
	Configured() bool
	PublishableKey() string
	Ping(ctx context.Context) error
	FindOrCreateCustomer(ctx context.Context, email string, metadata map[string]string) (*paymentprovider.Customer, error)
	CreateSubscription(ctx context.Context, p paymentprovider.CreateSubscriptionParams) (*paymentprovider.Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
}

// Checkouts хранилище записей оформления.
type Checkouts interface {
	CreateCheckout(ctx context.Context, c models.Checkout) error
	UpdateCheckout(ctx context.Context, c models.Checkout) error
	GetCheckoutBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Checkout, error)
}

// Identity провайдер идентификации.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (*models.Account, error)
	SignIn(ctx context.Context, email, password string) (*models.Account, string, error)
}

// Users записи пользователей.
type Users interface {
	Save(ctx context.Context, user models.User) error
}

// CreateRequest данные для создания подписки.
type CreateRequest struct {
	Email  string
	PlanID string
	Tenant string
}

// CreateResult данные для подтверждения оплаты на клиенте.
type CreateResult struct {
	CheckoutID     string
	ClientSecret   string
	SubscriptionID string
	CustomerID     string
	PublishableKey string
}

// ProvisionRequest данные для выдачи доступа после оплаты.
type ProvisionRequest struct {
	SubscriptionID string
	Email          string
	Password       string
}

// ProvisionResult результат выдачи доступа.
type ProvisionResult struct {
	CheckoutID  string
	State       models.CheckoutState
	UserID      string
	Token       string
	Provisioned bool
}

// Service оркестратор оформления подписки.
type Service struct {
	log       *slog.Logger
	gateway   Gateway
	checkouts Checkouts
	identity  Identity
	users     Users
	plans     map[string]models.Plan
	now       func() time.Time
}

// New создает оркестратор. priceIDs сопоставляет идентификатор плана с ценой Stripe.
func New(log *slog.Logger, gateway Gateway, checkouts Checkouts, identity Identity, users Users, priceIDs map[string]string) *Service {
	return &Service{
		log:       log,
		gateway:   gateway,
		checkouts: checkouts,
		identity:  identity,
		users:     users,
		plans:     models.Plans(priceIDs),
		now:       time.Now,
	}
}

// Create находит или создает покупателя и создает неполную подписку.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	const op = "checkout.Create"
	log := s.log.With(sl.Op(op), slog.String("email", req.Email), slog.String("plan_id", req.PlanID))

	if !s.gateway.Configured() {
		log.Error("stripe secret key is not set")
		return nil, ErrNotConfigured
	}

	plan, ok := s.plans[req.PlanID]
	if !ok {
		log.Warn("unknown plan")
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, req.PlanID)
	}
	if plan.PriceID == "" {
		log.Error("no price id configured for plan")
		return nil, fmt.Errorf("%w: %s", ErrPriceNotConfigured, req.PlanID)
	}

	tenant := req.Tenant
	if tenant == "" {
		tenant = models.DefaultTenant
	}

	now := s.now()
	c := models.Checkout{
		ID:        uuid.NewString(),
		Email:     req.Email,
		PlanID:    req.PlanID,
		Tenant:    tenant,
		State:     models.CheckoutInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.checkouts.CreateCheckout(ctx, c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.CheckoutTransitions.WithLabelValues(string(models.CheckoutInitiated)).Inc()
	log = log.With(slog.String("checkout_id", c.ID))
	log.Info("checkout initiated")

	if err := s.gateway.Ping(ctx); err != nil {
		log.Error("stripe connection failed", sl.Err(err))
		s.fail(ctx, log, &c, err)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	customer, err := s.gateway.FindOrCreateCustomer(ctx, req.Email, map[string]string{
		"tenant": tenant,
		"planId": req.PlanID,
	})
	if err != nil {
		log.Error("failed to find or create customer", sl.Err(err))
		s.fail(ctx, log, &c, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.CustomerID = customer.ID

	sub, err := s.gateway.CreateSubscription(ctx, paymentprovider.CreateSubscriptionParams{
		CustomerID: customer.ID,
		PriceID:    plan.PriceID,
		Metadata: map[string]string{
			"planId": req.PlanID,
			"tenant": tenant,
			"email":  req.Email,
		},
	})
	if err != nil {
		if sub != nil {
			// Подписка уже существует в Stripe, запись должна на нее ссылаться.
			c.SubscriptionID = sub.ID
		}
		log.Error("stripe subscription creation failed", sl.Err(err))
		s.fail(ctx, log, &c, err)
		return nil, fmt.Errorf("%w: %w", ErrPaymentSetup, err)
	}
	c.SubscriptionID = sub.ID
	s.transition(ctx, log, &c, models.CheckoutPaymentPending)

	return &CreateResult{
		CheckoutID:     c.ID,
		ClientSecret:   sub.ClientSecret,
		SubscriptionID: sub.ID,
		CustomerID:     customer.ID,
		PublishableKey: s.gateway.PublishableKey(),
	}, nil
}

// Provision выдает доступ после оплаты: создает учетную запись и запись пользователя.
//
// Оплата считается главным признаком успеха: сбой на шагах учетной записи или записи
// пользователя переводит оформление в failed и логируется, но не возвращается как ошибка.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	const op = "checkout.Provision"
	log := s.log.With(sl.Op(op), slog.String("subscription_id", req.SubscriptionID))

	c, err := s.checkouts.GetCheckoutBySubscriptionID(ctx, req.SubscriptionID)
	if errors.Is(err, storage.ErrCheckoutNotFound) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.String("checkout_id", c.ID))

	if !strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(req.Email)) {
		log.Warn("email does not match checkout")
		return nil, ErrEmailMismatch
	}
	if c.State.Terminal() {
		return &ProvisionResult{CheckoutID: c.ID, State: c.State, UserID: c.UserID, Provisioned: true}, nil
	}

	switch c.State {
	case models.CheckoutPaymentConfirmed, models.CheckoutAccountCreated:
		// Оплата уже подтверждена, продолжаем с места остановки.
	default:
		if !s.gateway.Configured() {
			return nil, ErrNotConfigured
		}
		sub, err := s.gateway.GetSubscription(ctx, req.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !sub.InvoicePaid {
			log.Info("payment not confirmed yet", slog.String("status", sub.Status))
			return nil, ErrPaymentNotConfirmed
		}
		s.transition(ctx, log, c, models.CheckoutPaymentConfirmed)
	}

	res := &ProvisionResult{CheckoutID: c.ID}

	account, err := s.identity.SignUp(ctx, c.Email, req.Password)
	if identity.Code(err) == identity.CodeEmailAlreadyInUse {
		account, res.Token, err = s.identity.SignIn(ctx, c.Email, req.Password)
	}
	if err != nil {
		log.Error("failed to create account", sl.Err(err))
		s.fail(ctx, log, c, err)
		res.State = c.State
		return res, nil
	}
	c.UserID = account.UID
	if c.State != models.CheckoutAccountCreated {
		s.transition(ctx, log, c, models.CheckoutAccountCreated)
	}

	customerID := c.CustomerID
	err = s.users.Save(ctx, models.User{
		ID:               account.UID,
		Email:            c.Email,
		PlanID:           c.PlanID,
		StripeCustomerID: &customerID,
		Status:           models.StatusActive,
	})
	if err != nil {
		log.Error("failed to save user record", sl.Err(err))
		s.fail(ctx, log, c, err)
		res.State = c.State
		res.UserID = account.UID
		return res, nil
	}
	s.transition(ctx, log, c, models.CheckoutProvisioned)

	if res.Token == "" {
		if _, token, err := s.identity.SignIn(ctx, c.Email, req.Password); err == nil {
			res.Token = token
		} else {
			log.Warn("failed to sign in after provisioning", sl.Err(err))
		}
	}

	res.State = c.State
	res.UserID = account.UID
	res.Provisioned = true
	return res, nil
}

// transition переводит запись в состояние to и сохраняет ее. Ошибка сохранения
// только логируется.
func (s *Service) transition(ctx context.Context, log *slog.Logger, c *models.Checkout, to models.CheckoutState) {
	from := c.State
	if err := c.Transition(to, s.now()); err != nil {
		log.Error("invalid checkout transition", sl.Err(err))
		return
	}
	s.persist(ctx, log, c, from)
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, c *models.Checkout, cause error) {
	from := c.State
	if err := c.Fail(cause, s.now()); err != nil {
		log.Error("invalid checkout transition", sl.Err(err))
		return
	}
	s.persist(ctx, log, c, from)
}

func (s *Service) persist(ctx context.Context, log *slog.Logger, c *models.Checkout, from models.CheckoutState) {
	metrics.CheckoutTransitions.WithLabelValues(string(c.State)).Inc()
	log.Info("checkout transition",
		slog.String("from", string(from)),
		slog.String("to", string(c.State)),
	)
	if err := s.checkouts.UpdateCheckout(ctx, *c); err != nil {
		log.Error("failed to persist checkout", sl.Err(err))
	}
}
