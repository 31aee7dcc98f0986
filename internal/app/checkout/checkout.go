package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/stack-checkout/internal/cache"
	"github.com/magabrotheeeer/stack-checkout/internal/config"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/health"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/smtp"
	"github.com/magabrotheeeer/stack-checkout/internal/migrations"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/services/cancellation"
	checkoutservice "github.com/magabrotheeeer/stack-checkout/internal/services/checkout"
	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
	"github.com/magabrotheeeer/stack-checkout/internal/services/sender"
	"github.com/magabrotheeeer/stack-checkout/internal/services/users"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

// errQueueNotConfigured очередь уведомлений не настроена.
var errQueueNotConfigured = errors.New("notification queue is not configured")

// Publisher публикует уведомления в очередь.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// noQueue используется, когда RABBITMQ_URL не задан: публикация всегда завершается ошибкой.
type noQueue struct{}

func (noQueue) Publish(context.Context, string, any) error {
	return errQueueNotConfigured
}

// App HTTP-приложение оформления подписки.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает инфраструктуру и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.checkout.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	var publisher Publisher = noQueue{}
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.closeStores()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			_ = conn.Close()
			app.closeStores()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.conn, app.ch = conn, ch
		publisher = rabbitmq.NewPublisher(ch)
	} else {
		logger.Warn("RABBITMQ_URL is not set, notification emails will not be queued")
	}

	if cfg.JWTSecretKey == "" {
		logger.Error("JWT_SECRET_KEY is not set, authenticated endpoints will return configuration errors")
	}
	if !cfg.Email.Configured() {
		logger.Warn("email credentials are not set, welcome emails will fail")
	}

	gateway := paymentprovider.NewClient(logger, cfg.Stripe)
	if !gateway.Configured() {
		logger.Warn("STRIPE_SECRET_KEY is not set, billing endpoints will fail")
	}
	usersService := users.New(logger, db, cacheRedis)
	identityService := identity.New(logger, db, cacheRedis,
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), publisher,
		identity.Options{
			ResetURL: strings.TrimSuffix(cfg.AppBaseURL, "/") + "/reset-password",
			Disabled: cfg.PasswordSignInDisabled,
		},
	)

	svc := Services{
		Checkout:     checkoutservice.New(logger, gateway, db, identityService, usersService, cfg.Stripe.PriceIDs()),
		Cancellation: cancellation.New(logger, gateway, usersService, publisher),
		Identity:     identityService,
		Users:        usersService,
		Sender:       sender.New(logger, cfg.Email, smtp.NewDialer(cfg.Email)),
		Health: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, svc)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	a.closeStores()
}

func (a *App) closeStores() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
