// Package create реализует HTTP-обработчик создания подписки в Stripe.
//
// Handler принимает email и план, валидирует их до любых обращений к Stripe и возвращает
// clientSecret, по которому клиент подтверждает оплату картой.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/services/checkout"
)

// Request: входные данные для создания подписки.
type Request struct {
	Email  string `json:"email" validate:"required,email"`
	PlanID string `json:"planId" validate:"required"`
	Tenant string `json:"tenant,omitempty"`
}

// Response: данные для подтверждения оплаты на клиенте.
type Response struct {
	ClientSecret   string `json:"clientSecret"`
	SubscriptionID string `json:"subscriptionId"`
	CustomerID     string `json:"customerId"`
	PublishableKey string `json:"publishableKey,omitempty"`
	CheckoutID     string `json:"checkoutId"`
}

// Service описывает интерфейс оформления подписки.
type Service interface {
	Create(ctx context.Context, req checkout.CreateRequest) (*checkout.CreateResult, error)
}

// Handler управляет HTTP-запросами на создание подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
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

	res, err := h.service.Create(r.Context(), checkout.CreateRequest{
		Email:  req.Email,
		PlanID: req.PlanID,
		Tenant: req.Tenant,
	})
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		status, body := errorResponse(req.PlanID, err)
		response.Render(w, r, status, body)
		return
	}

	log.Info("subscription created",
		slog.String("subscription_id", res.SubscriptionID),
		slog.String("checkout_id", res.CheckoutID),
	)
	render.JSON(w, r, Response{
		ClientSecret:   res.ClientSecret,
		SubscriptionID: res.SubscriptionID,
		CustomerID:     res.CustomerID,
		PublishableKey: res.PublishableKey,
		CheckoutID:     res.CheckoutID,
	})
}

func errorResponse(planID string, err error) (int, response.Response) {
	switch {
	case errors.Is(err, checkout.ErrNotConfigured):
		return http.StatusInternalServerError, response.Error("Stripe configuration error")
	case errors.Is(err, checkout.ErrInvalidPlan):
		return http.StatusBadRequest, response.Error(
			fmt.Sprintf("Invalid plan selected: %s. Please contact support.", planID))
	case errors.Is(err, checkout.ErrPriceNotConfigured):
		return http.StatusInternalServerError, response.ErrorWithDetails(
			"Stripe configuration error", fmt.Sprintf("price is not configured for plan %s", planID))
	case errors.Is(err, checkout.ErrConnection):
		return http.StatusInternalServerError, response.ErrorWithDetails(
			"Stripe connection failed", err.Error())
	}

	var pe *paymentprovider.ProviderError
	if errors.As(err, &pe) {
		return http.StatusInternalServerError, response.ErrorWithDetails(
			"Payment setup failed: "+pe.Message, map[string]any{"type": pe.Type, "code": pe.Code})
	}
	return http.StatusInternalServerError, response.Error("Payment setup failed: " + err.Error())
}
