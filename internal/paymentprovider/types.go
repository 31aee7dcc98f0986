package paymentprovider

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured секретный ключ Stripe не задан.
	ErrNotConfigured = errors.New("payment gateway is not configured")
	// ErrCustomerNotFound покупатель с указанным email не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrUnavailable цепь разомкнута после серии отказов Stripe.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrMissingClientSecret подписка создана, но Stripe не вернул секрет подтверждения.
	ErrMissingClientSecret = errors.New("subscription has no confirmation secret")
)

// ProviderError ошибка, возвращенная API Stripe.
type ProviderError struct {
	Type        string
	Code        string
	Param       string
	DeclineCode string
	Message     string
	StatusCode  int
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Customer покупатель Stripe.
type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// Subscription подписка Stripe в объеме, нужном оформлению и отмене.
type Subscription struct {
	ID           string
	CustomerID   string
	Status       string
	ClientSecret string
	// InvoicePaid последний счет подписки оплачен.
	InvoicePaid bool
	// CurrentPeriodEnd максимальный конец периода среди позиций подписки.
	CurrentPeriodEnd time.Time
	Metadata         map[string]string
}

// CreateSubscriptionParams параметры создания неполной подписки.
type CreateSubscriptionParams struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

// PriceParams параметры создания регулярной цены.
type PriceParams struct {
	ProductID     string
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int64
	Nickname      string
	Metadata      map[string]string
}
