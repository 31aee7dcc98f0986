// Package paymentprovider реализует адаптер платежного шлюза Stripe:
// поиск и создание покупателей, неполные подписки с секретом подтверждения,
// отмену подписок и создание продуктов и цен.
package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/magabrotheeeer/stack-checkout/internal/config"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/metrics"
)

// Client клиент Stripe с автоматическим выключателем.
//
// Повторы на уровне SDK отключены: каждая операция выполняется ровно один раз.
type Client struct {
	log            *slog.Logger
	api            *client.API
	breaker        *gobreaker.CircuitBreaker[any]
	publishableKey string
}

// NewClient создает клиент. При пустом секретном ключе клиент создается,
// но все операции возвращают ErrNotConfigured без обращения к сети.
func NewClient(log *slog.Logger, cfg config.Stripe) *Client {
	c := &Client{
		log:            log,
		publishableKey: cfg.PublishableKey,
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "stripe",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Отказы по вине запроса (4xx) не размыкают цепь.
			var pe *ProviderError
			if errors.As(err, &pe) {
				return pe.StatusCode > 0 && pe.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, ErrCustomerNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	if cfg.SecretKey == "" {
		return c
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	c.api = client.New(cfg.SecretKey, stripe.NewBackendsWithConfig(backendCfg))
	return c
}

// Configured сообщает, задан ли секретный ключ.
func (c *Client) Configured() bool {
	return c.api != nil
}

// PublishableKey возвращает публичный ключ для клиента.
func (c *Client) PublishableKey() string {
	return c.publishableKey
}

func (c *Client) call(ctx context.Context, operation string, fn func() (any, error)) (any, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.breaker.Execute(func() (any, error) {
		v, err := fn()
		return v, convertError(err)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrUnavailable
	}
	metrics.GatewayRequests.WithLabelValues(operation, metrics.Result(err)).Inc()
	if err != nil && !errors.Is(err, ErrCustomerNotFound) {
		c.log.Warn("stripe call failed", slog.String("operation", operation), sl.Err(err))
	}
	return res, err
}

// Ping проверяет доступность Stripe запросом списка покупателей из одного элемента.
func (c *Client) Ping(ctx context.Context) error {
	const op = "paymentprovider.Ping"
	_, err := c.call(ctx, "ping", func() (any, error) {
		params := &stripe.CustomerListParams{}
		params.Limit = stripe.Int64(1)
		params.Context = ctx
		iter := c.api.Customers.List(params)
		// Достаточно первой страницы.
		iter.Next()
		return nil, iter.Err()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindCustomerByEmail ищет покупателя по email. Если не найден, возвращает ErrCustomerNotFound.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	const op = "paymentprovider.FindCustomerByEmail"
	res, err := c.call(ctx, "find_customer", func() (any, error) {
		params := &stripe.CustomerListParams{Email: stripe.String(email)}
		params.Limit = stripe.Int64(1)
		params.Context = ctx
		iter := c.api.Customers.List(params)
		if iter.Next() {
			return toCustomer(iter.Customer()), nil
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, ErrCustomerNotFound
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.(*Customer), nil
}

// FindOrCreateCustomer возвращает существующего покупателя с данным email
// или создает нового с метаданными metadata.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	const op = "paymentprovider.FindOrCreateCustomer"

	existing, err := c.FindCustomerByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := c.call(ctx, "create_customer", func() (any, error) {
		params := &stripe.CustomerParams{Email: stripe.String(email)}
		for k, v := range metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx
		cus, err := c.api.Customers.New(params)
		if err != nil {
			return nil, err
		}
		return toCustomer(cus), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.(*Customer), nil
}

// CreateSubscription создает подписку в статусе incomplete и возвращает секрет
// подтверждения первого счета. Если секрета нет, возвращается и созданная подписка,
// и ErrMissingClientSecret.
func (c *Client) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*Subscription, error) {
	const op = "paymentprovider.CreateSubscription"
	res, err := c.call(ctx, "create_subscription", func() (any, error) {
		params := &stripe.SubscriptionParams{
			Customer: stripe.String(p.CustomerID),
			Items: []*stripe.SubscriptionItemsParams{
				{Price: stripe.String(p.PriceID)},
			},
			PaymentBehavior: stripe.String("default_incomplete"),
			PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
				SaveDefaultPaymentMethod: stripe.String("on_subscription"),
			},
		}
		for k, v := range p.Metadata {
			params.AddMetadata(k, v)
		}
		params.AddExpand("latest_invoice.confirmation_secret")
		params.Context = ctx

		sub, err := c.api.Subscriptions.New(params)
		if err != nil {
			return nil, err
		}
		return toSubscription(sub), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub := res.(*Subscription)
	if sub.ClientSecret == "" {
		return sub, fmt.Errorf("%s: %w: %s", op, ErrMissingClientSecret, sub.ID)
	}
	return sub, nil
}

// GetSubscription возвращает подписку вместе со статусом последнего счета.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.GetSubscription"
	res, err := c.call(ctx, "get_subscription", func() (any, error) {
		params := &stripe.SubscriptionParams{}
		params.AddExpand("latest_invoice")
		params.Context = ctx
		sub, err := c.api.Subscriptions.Get(subscriptionID, params)
		if err != nil {
			return nil, err
		}
		return toSubscription(sub), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.(*Subscription), nil
}

// ListActiveSubscriptions возвращает все активные подписки покупателя.
func (c *Client) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	const op = "paymentprovider.ListActiveSubscriptions"
	res, err := c.call(ctx, "list_subscriptions", func() (any, error) {
		params := &stripe.SubscriptionListParams{
			Customer: stripe.String(customerID),
			Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
		}
		params.Context = ctx
		iter := c.api.Subscriptions.List(params)
		var subs []Subscription
		for iter.Next() {
			subs = append(subs, *toSubscription(iter.Subscription()))
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return subs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs, _ := res.([]Subscription)
	return subs, nil
}

// CancelSubscription немедленно отменяет подписку.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.CancelSubscription"
	res, err := c.call(ctx, "cancel_subscription", func() (any, error) {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		sub, err := c.api.Subscriptions.Cancel(subscriptionID, params)
		if err != nil {
			return nil, err
		}
		return toSubscription(sub), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.(*Subscription), nil
}

// CreateProduct создает продукт и возвращает его идентификатор.
func (c *Client) CreateProduct(ctx context.Context, name, description string) (string, error) {
	const op = "paymentprovider.CreateProduct"
	res, err := c.call(ctx, "create_product", func() (any, error) {
		params := &stripe.ProductParams{
			Name:        stripe.String(name),
			Description: stripe.String(description),
		}
		params.Context = ctx
		p, err := c.api.Products.New(params)
		if err != nil {
			return nil, err
		}
		return p.ID, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return res.(string), nil
}

// CreatePrice создает регулярную цену и возвращает ее идентификатор.
func (c *Client) CreatePrice(ctx context.Context, p PriceParams) (string, error) {
	const op = "paymentprovider.CreatePrice"
	res, err := c.call(ctx, "create_price", func() (any, error) {
		params := &stripe.PriceParams{
			Product:    stripe.String(p.ProductID),
			UnitAmount: stripe.Int64(p.UnitAmount),
			Currency:   stripe.String(p.Currency),
			Recurring: &stripe.PriceRecurringParams{
				Interval:      stripe.String(p.Interval),
				IntervalCount: stripe.Int64(p.IntervalCount),
			},
		}
		if p.Nickname != "" {
			params.Nickname = stripe.String(p.Nickname)
		}
		for k, v := range p.Metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx
		price, err := c.api.Prices.New(params)
		if err != nil {
			return nil, err
		}
		return price.ID, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return res.(string), nil
}

func toCustomer(c *stripe.Customer) *Customer {
	return &Customer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}
}

func toSubscription(s *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:       s.ID,
		Status:   string(s.Status),
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if inv := s.LatestInvoice; inv != nil {
		out.InvoicePaid = inv.Status == stripe.InvoiceStatusPaid
		if inv.ConfirmationSecret != nil {
			out.ClientSecret = inv.ConfirmationSecret.ClientSecret
		}
	}
	if s.Items != nil {
		var maxEnd int64
		for _, item := range s.Items.Data {
			if item != nil && item.CurrentPeriodEnd > maxEnd {
				maxEnd = item.CurrentPeriodEnd
			}
		}
		if maxEnd > 0 {
			out.CurrentPeriodEnd = time.Unix(maxEnd, 0).UTC()
		}
	}
	return out
}

func convertError(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return &ProviderError{
			Type:        string(se.Type),
			Code:        string(se.Code),
			Param:       se.Param,
			DeclineCode: string(se.DeclineCode),
			Message:     se.Msg,
			StatusCode:  se.HTTPStatusCode,
		}
	}
	return err
}
