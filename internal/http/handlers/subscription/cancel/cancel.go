// Package cancel реализует HTTP-обработчик отмены подписки.
//
// Подписку можно отменить по userId (нужен Bearer токен этого пользователя) или по email.
package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stack-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/services/cancellation"
)

// Request: входные данные отмены. Нужен userId или email.
type Request struct {
	UserID           string `json:"userId" validate:"required_without=Email"`
	Email            string `json:"email" validate:"required_without=UserID"`
	StripeCustomerID string `json:"stripeCustomerId,omitempty"`
}

// Response: результат отмены.
type Response struct {
	Success               bool       `json:"success"`
	Message               string     `json:"message"`
	CanceledSubscriptions []string   `json:"canceledSubscriptions"`
	ExpireDate            *time.Time `json:"expireDate,omitempty"`
	StripeCustomerID      string     `json:"stripeCustomerId,omitempty"`
	NoSubscription        bool       `json:"noSubscription,omitempty"`
}

// Service описывает интерфейс отмены подписок.
type Service interface {
	Cancel(ctx context.Context, req cancellation.Request) (*cancellation.Result, error)
}

// Handler управляет HTTP-запросами на отмену подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Render(w, r, http.StatusBadRequest, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Render(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if req.UserID != "" {
		uid, ok := middlewarectx.UserUIDFrom(r.Context())
		if !ok || uid != req.UserID {
			log.Warn("user id does not match token")
			response.Render(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
			return
		}
	}

	res, err := h.service.Cancel(r.Context(), cancellation.Request{
		UserID:           req.UserID,
		Email:            req.Email,
		StripeCustomerID: req.StripeCustomerID,
	})
	if err != nil {
		log.Error("failed to cancel subscription", sl.Err(err))
		status, body := errorResponse(err)
		response.Render(w, r, status, body)
		return
	}

	msg := "Subscription canceled successfully"
	if res.NoSubscription {
		msg = "No active subscription found"
	}
	log.Info("cancellation finished",
		slog.Int("canceled", len(res.CanceledSubscriptions)),
		slog.Bool("no_subscription", res.NoSubscription),
	)
	render.JSON(w, r, Response{
		Success:               true,
		Message:               msg,
		CanceledSubscriptions: res.CanceledSubscriptions,
		ExpireDate:            res.ExpireDate,
		StripeCustomerID:      res.StripeCustomerID,
		NoSubscription:        res.NoSubscription,
	})
}

func errorResponse(err error) (int, response.Response) {
	switch {
	case errors.Is(err, cancellation.ErrNotConfigured):
		return http.StatusInternalServerError, response.Error("Stripe configuration error")
	case errors.Is(err, cancellation.ErrUserNotFound):
		return http.StatusNotFound, response.Error("User not found")
	case errors.Is(err, cancellation.ErrCustomerLookup):
		return http.StatusInternalServerError, response.Error("Failed to find customer in payment system")
	}

	var pe *paymentprovider.ProviderError
	if errors.As(err, &pe) {
		return http.StatusInternalServerError, response.Error(fmt.Sprintf("Stripe error: %s - %s", pe.Type, pe.Message))
	}
	return http.StatusInternalServerError, response.ErrorWithDetails("Failed to cancel subscription", err.Error())
}
