package models

import (
	"errors"
	"fmt"
	"time"
)

// CheckoutState состояние процесса оформления подписки.
type CheckoutState string

// Состояния оформления. Порядок: initiated → payment_pending → payment_confirmed →
// account_created → provisioned. В failed можно перейти из любого незавершенного состояния.
const (
	CheckoutInitiated        CheckoutState = "initiated"
	CheckoutPaymentPending   CheckoutState = "payment_pending"
	CheckoutPaymentConfirmed CheckoutState = "payment_confirmed"
	CheckoutAccountCreated   CheckoutState = "account_created"
	CheckoutProvisioned      CheckoutState = "provisioned"
	CheckoutFailed           CheckoutState = "failed"
)

// ErrInvalidTransition недопустимый переход между состояниями.
var ErrInvalidTransition = errors.New("invalid checkout state transition")

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutInitiated:        {CheckoutPaymentPending, CheckoutFailed},
	CheckoutPaymentPending:   {CheckoutPaymentConfirmed, CheckoutFailed},
	CheckoutPaymentConfirmed: {CheckoutAccountCreated, CheckoutFailed},
	CheckoutAccountCreated:   {CheckoutProvisioned, CheckoutFailed},
	// failed после подтвержденной оплаты можно довести до конца повторным вызовом.
	CheckoutFailed: {CheckoutPaymentConfirmed},
}

// CanTransition сообщает, разрешен ли переход from → to.
func (s CheckoutState) CanTransition(to CheckoutState) bool {
	for _, next := range checkoutTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal сообщает, завершен ли процесс.
func (s CheckoutState) Terminal() bool {
	return s == CheckoutProvisioned
}

// Checkout запись процесса оформления подписки. Сохраняется на каждом переходе,
// чтобы частично выполненные оформления можно было диагностировать.
type Checkout struct {
	ID             string
	Email          string
	PlanID         string
	Tenant         string
	CustomerID     string
	SubscriptionID string
	UserID         string
	State          CheckoutState
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition переводит запись в состояние to, проверяя допустимость перехода.
func (c *Checkout) Transition(to CheckoutState, now time.Time) error {
	if !c.State.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, to)
	}
	c.State = to
	c.UpdatedAt = now
	if to != CheckoutFailed {
		c.LastError = ""
	}
	return nil
}

// Fail переводит запись в failed и запоминает причину.
func (c *Checkout) Fail(cause error, now time.Time) error {
	if err := c.Transition(CheckoutFailed, now); err != nil {
		return err
	}
	if cause != nil {
		c.LastError = cause.Error()
	}
	return nil
}
