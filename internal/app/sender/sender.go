// Package sender собирает приложение-отправитель писем: читает очереди уведомлений
// RabbitMQ и отправляет письма через SMTP-релей.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/stack-checkout/internal/config"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/stack-checkout/internal/services/sender"
)

// App приложение-отправитель.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к RabbitMQ и объявляет очереди уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if !cfg.Email.Configured() {
		logger.Warn("email credentials are not set, messages will be rejected")
	}
	senderService := senderservice.New(logger, cfg.Email, smtp.NewDialer(cfg.Email))

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей и ждет отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueuePasswordReset, a.senderService.HandlePasswordReset)
	if err != nil {
		a.logger.Error("failed to start password_reset_queue consumer", sl.Err(err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueSubscriptionCanceled, a.senderService.HandleCancellation)
	if err != nil {
		a.logger.Error("failed to start subscription_canceled_queue consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
