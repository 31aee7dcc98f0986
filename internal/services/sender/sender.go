// Package sender формирует и отправляет транзакционные письма:
// приветственное письмо с учетными данными, сброс пароля и уведомление об отмене подписки.
package sender

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/stack-checkout/internal/config"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/smtp"
	"github.com/magabrotheeeer/stack-checkout/internal/metrics"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
)

// Ссылка на приложение в App Store.
const AppURL = "https://apps.apple.com/jp/app/stack-%E8%87%AA%E5%B7%B1%E6%8A%95%E8%B3%87%E3%82%A2%E3%83%97%E3%83%AA/id6745755185?l=en-US"

// Темы писем.
const (
	WelcomeSubject       = "ようこそ、Stackへ 🎉"
	PasswordResetSubject = "パスワードリセットのご案内"
	CancellationSubject  = "サブスクリプションのキャンセルが完了しました"
)

// ErrNotConfigured не заданы учетные данные SMTP.
var ErrNotConfigured = errors.New("email service not configured")

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

// Service отправляет письма через SMTP-релей.
type Service struct {
	log    *slog.Logger
	cfg    config.Email
	mailer smtp.Sender
	now    func() time.Time
}

// New создает сервис отправки писем.
func New(log *slog.Logger, cfg config.Email, mailer smtp.Sender) *Service {
	return &Service{
		log:    log,
		cfg:    cfg,
		mailer: mailer,
		now:    time.Now,
	}
}

type welcomeData struct {
	Email    string
	Password string
	AppURL   string
	Year     int
}

type resetData struct {
	ResetLink string
	ExpiresAt string
}

type cancellationData struct {
	ExpireDate string
}

// SendWelcome отправляет приветственное письмо с учетными данными и возвращает Message-ID.
// Повторная отправка не выполняется.
func (s *Service) SendWelcome(ctx context.Context, email, password string) (string, error) {
	const op = "sender.SendWelcome"
	data := welcomeData{
		Email:    email,
		Password: password,
		AppURL:   AppURL,
		Year:     s.now().Year(),
	}
	id, err := s.send(ctx, "welcome", email, WelcomeSubject, "welcome", data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// SendPasswordReset отправляет письмо со ссылкой сброса пароля.
func (s *Service) SendPasswordReset(ctx context.Context, msg models.PasswordResetMessage) error {
	const op = "sender.SendPasswordReset"
	data := resetData{
		ResetLink: msg.ResetLink,
		ExpiresAt: formatJST(msg.ExpiresAt, "2006/01/02 15:04"),
	}
	if _, err := s.send(ctx, "password_reset", msg.Email, PasswordResetSubject, "password_reset", data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendCancellationNotice отправляет уведомление об отмене подписки.
func (s *Service) SendCancellationNotice(ctx context.Context, msg models.CancellationMessage) error {
	const op = "sender.SendCancellationNotice"
	var data cancellationData
	if msg.ExpireDate != nil {
		data.ExpireDate = formatJST(*msg.ExpireDate, "2006年1月2日")
	}
	if _, err := s.send(ctx, "cancellation", msg.Email, CancellationSubject, "cancellation", data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandlePasswordReset обработчик сообщений очереди password_reset_queue.
func (s *Service) HandlePasswordReset(body []byte) error {
	var msg models.PasswordResetMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	return s.SendPasswordReset(context.Background(), msg)
}

// HandleCancellation обработчик сообщений очереди subscription_canceled_queue.
func (s *Service) HandleCancellation(body []byte) error {
	var msg models.CancellationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	return s.SendCancellationNotice(context.Background(), msg)
}

func (s *Service) send(ctx context.Context, kind, to, subject, tmpl string, data any) (string, error) {
	log := s.log.With(slog.String("kind", kind), slog.String("to", to))

	if !s.cfg.Configured() {
		log.Error("email credentials not configured")
		metrics.EmailsSent.WithLabelValues(kind, "not_configured").Inc()
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var textBody, htmlBody bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&textBody, tmpl+".txt", data); err != nil {
		return "", fmt.Errorf("render text: %w", err)
	}
	if err := htmlTemplates.ExecuteTemplate(&htmlBody, tmpl+".html", data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	messageID := s.messageID()
	m := gomail.NewMessage()
	m.SetHeader("From", smtp.FromAddress(s.cfg))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", textBody.String())
	m.AddAlternative("text/html", htmlBody.String())

	if err := s.mailer.DialAndSend(m); err != nil {
		log.Error("failed to send email", sl.Err(err))
		metrics.EmailsSent.WithLabelValues(kind, "error").Inc()
		return "", err
	}

	metrics.EmailsSent.WithLabelValues(kind, "ok").Inc()
	log.Info("email sent successfully", slog.String("message_id", messageID))
	return messageID, nil
}

func (s *Service) messageID() string {
	domain := "localhost"
	if at := strings.LastIndex(s.cfg.Sender, "@"); at >= 0 && at < len(s.cfg.Sender)-1 {
		domain = s.cfg.Sender[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

var jst = time.FixedZone("JST", 9*60*60)

func formatJST(t time.Time, layout string) string {
	return t.In(jst).Format(layout)
}
