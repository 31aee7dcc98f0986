// Package confirm реализует HTTP-обработчик выдачи доступа после оплаты.
//
// Клиент вызывает его после успешного подтверждения карты. Оплата проверяется в Stripe,
// затем создаются учетная запись и запись пользователя. Сбой этих шагов не превращается
// в ошибку ответа: оплата уже прошла, поэтому возвращается provisioned=false.
package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/services/checkout"
)

// Request: входные данные подтверждения.
type Request struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
}

// Response: результат выдачи доступа.
type Response struct {
	Success     bool   `json:"success"`
	Provisioned bool   `json:"provisioned"`
	CheckoutID  string `json:"checkoutId"`
	State       string `json:"state"`
	UserID      string `json:"userId,omitempty"`
	Token       string `json:"token,omitempty"`
}

// Service описывает интерфейс выдачи доступа.
type Service interface {
	Provision(ctx context.Context, req checkout.ProvisionRequest) (*checkout.ProvisionResult, error)
}

// Handler управляет HTTP-запросами подтверждения оплаты.
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
	const op = "handlers.subscription.confirm"
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
	log = log.With(slog.String("subscription_id", req.SubscriptionID), slog.String("email", req.Email))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Render(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Provision(r.Context(), checkout.ProvisionRequest{
		SubscriptionID: req.SubscriptionID,
		Email:          req.Email,
		Password:       req.Password,
	})
	switch {
	case errors.Is(err, checkout.ErrCheckoutNotFound):
		log.Warn("checkout not found")
		response.Render(w, r, http.StatusNotFound, response.Error("Checkout not found"))
		return
	case errors.Is(err, checkout.ErrEmailMismatch):
		log.Warn("email mismatch")
		response.Render(w, r, http.StatusBadRequest, response.Error("Email does not match the subscription"))
		return
	case errors.Is(err, checkout.ErrPaymentNotConfirmed):
		log.Info("payment not confirmed")
		response.Render(w, r, http.StatusPaymentRequired, response.Error("Payment has not been confirmed"))
		return
	case errors.Is(err, checkout.ErrNotConfigured):
		log.Error("stripe is not configured")
		response.Render(w, r, http.StatusInternalServerError, response.Error("Stripe configuration error"))
		return
	case err != nil:
		log.Error("failed to provision", sl.Err(err))
		response.Render(w, r, http.StatusInternalServerError, response.ErrorWithDetails("Failed to confirm subscription", err.Error()))
		return
	}

	if !res.Provisioned {
		log.Warn("payment confirmed but provisioning failed", slog.String("checkout_id", res.CheckoutID))
	} else {
		log.Info("subscription provisioned", slog.String("checkout_id", res.CheckoutID))
	}
	render.JSON(w, r, Response{
		Success:     true,
		Provisioned: res.Provisioned,
		CheckoutID:  res.CheckoutID,
		State:       string(res.State),
		UserID:      res.UserID,
		Token:       res.Token,
	})
}
