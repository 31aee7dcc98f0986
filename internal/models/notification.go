package models

import "time"

// PasswordResetMessage сообщение очереди password_reset_queue.
type PasswordResetMessage struct {
	Email     string    `json:"email"`
	ResetLink string    `json:"reset_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CancellationMessage сообщение очереди subscription_canceled_queue.
type CancellationMessage struct {
	Email      string     `json:"email"`
	ExpireDate *time.Time `json:"expire_date,omitempty"`
}
