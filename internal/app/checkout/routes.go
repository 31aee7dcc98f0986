// Package checkout собирает HTTP-приложение оформления подписки: маршруты, сервисы
// и инфраструктуру (PostgreSQL, Redis, RabbitMQ, Stripe, SMTP).
package checkout

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/auth/resetconfirm"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/auth/resetrequest"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/email/welcome"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/health"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/subscription/confirm"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/users/me"
	"github.com/magabrotheeeer/stack-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stack-checkout/internal/metrics"
	"github.com/magabrotheeeer/stack-checkout/internal/services/cancellation"
	checkoutservice "github.com/magabrotheeeer/stack-checkout/internal/services/checkout"
	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
	"github.com/magabrotheeeer/stack-checkout/internal/services/sender"
	"github.com/magabrotheeeer/stack-checkout/internal/services/users"
)

// Services сервисы, которые обслуживают маршруты.
type Services struct {
	Checkout     *checkoutservice.Service
	Cancellation *cancellation.Service
	Identity     *identity.Service
	Users        *users.Service
	Sender       *sender.Service
	Health       map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.HTTPMiddleware,
	)

	limiter := middlewarectx.NewRateLimiter(6*time.Second, 10)

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/create", create.New(logger, svc.Checkout).ServeHTTP)
		r.Post("/confirm", confirm.New(logger, svc.Checkout).ServeHTTP)
		r.With(middlewarectx.OptionalJWTMiddleware(svc.Identity, logger)).
			Post("/cancel", cancel.New(logger, svc.Cancellation).ServeHTTP)
	})
	r.Post("/send-welcome-email", welcome.New(logger, svc.Sender).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Post("/login", login.New(logger, svc.Identity).ServeHTTP)
			r.Post("/password-reset", resetrequest.New(logger, svc.Identity).ServeHTTP)
			r.Post("/password-reset/confirm", resetconfirm.New(logger, svc.Identity).ServeHTTP)
		})
		r.With(middlewarectx.JWTMiddleware(svc.Identity, logger)).
			Post("/logout", logout.New(logger, svc.Identity).ServeHTTP)
	})

	// Группа с JWT аутентификацией
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(svc.Identity, logger))
		r.Get("/users/me", me.New(logger, svc.Users).ServeHTTP)
	})

	r.Get("/health", health.New(logger, svc.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
