// Package welcome реализует HTTP-обработчик отправки приветственного письма
// с учетными данными для входа в приложение.
package welcome

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
	"github.com/magabrotheeeer/stack-checkout/internal/services/sender"
)

// Request: адресат и пароль, который будет указан в письме.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Response: результат отправки.
type Response struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// Service описывает интерфейс отправки приветственного письма.
type Service interface {
	SendWelcome(ctx context.Context, email, password string) (string, error)
}

// Handler управляет HTTP-запросами отправки приветственного письма.
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
	const op = "handlers.email.welcome"
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
	log = log.With(slog.String("email", req.Email))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Render(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	id, err := h.service.SendWelcome(r.Context(), req.Email, req.Password)
	if errors.Is(err, sender.ErrNotConfigured) {
		log.Error("email service not configured")
		response.Render(w, r, http.StatusInternalServerError,
			response.ErrorWithDetails("Failed to send email", "Email service not configured"))
		return
	}
	if err != nil {
		log.Error("failed to send welcome email", sl.Err(err))
		response.Render(w, r, http.StatusInternalServerError, response.ErrorWithDetails("Failed to send email", err.Error()))
		return
	}

	log.Info("welcome email sent", slog.String("message_id", id))
	render.JSON(w, r, Response{Success: true, MessageID: id})
}
