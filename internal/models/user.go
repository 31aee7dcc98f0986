// Package models содержит доменные модели сервиса оформления подписки:
// запись пользователя, учетную запись, процесс оформления (checkout) и планы.
package models

import "time"

// Статусы подписки пользователя.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// User запись пользователя в хранилище. Создается только после подтвержденной оплаты.
type User struct {
	ID               string     `json:"id"`                         // Совпадает с UID учетной записи
	Email            string     `json:"email"`                      // Электронная почта
	PlanID           string     `json:"planId"`                     // Оплаченный план
	StripeCustomerID *string    `json:"stripeCustomerId,omitempty"` // Ссылка на покупателя в Stripe
	Status           string     `json:"status"`                     // active или canceled
	ExpireDate       *time.Time `json:"expireDate,omitempty"`       // Дата окончания доступа после отмены
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// CustomerID возвращает ссылку на покупателя или пустую строку.
func (u *User) CustomerID() string {
	if u == nil || u.StripeCustomerID == nil {
		return ""
	}
	return *u.StripeCustomerID
}

// Account учетная запись провайдера идентификации.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
