// Package smtp предоставляет SMTP-транспорт на основе gomail.
package smtp

import (
	"crypto/tls"

	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/stack-checkout/internal/config"
)

// Sender отправляет подготовленные письма.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// NewDialer создает SMTP-дайлер для релея из конфигурации.
// Соединение поднимается через STARTTLS на каждую отправку.
func NewDialer(cfg config.Email) *gomail.Dialer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Sender, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName: cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	return d
}

// FromAddress форматирует адрес отправителя вида "Stack" <sender>.
func FromAddress(cfg config.Email) string {
	m := gomail.NewMessage()
	return m.FormatAddress(cfg.Sender, cfg.FromName)
}
