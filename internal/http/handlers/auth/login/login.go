// Package login реализует HTTP-обработчик входа по email и паролю.
//
// При успешном входе возвращается JWT токен и UID пользователя. Ошибки провайдера
// идентификации переводятся в понятные пользователю сообщения с кодом ошибки.
package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/auth"
	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
)

// Request: структура входных данных для авторизации.
type Request struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Response: токен и UID пользователя.
type Response struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Провайдер идентификации
	validate *validator.Validate // Валидатор для проверки входных данных
}

// Service описывает интерфейс входа.
type Service interface {
	SignIn(ctx context.Context, email, password string) (*models.Account, string, error)
}

// New создает новый экземпляр Handler с указанными логгером и провайдером идентификации.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Render(w, r, http.StatusBadRequest, response.Error("invalid request body"))
		return
	}
	log = log.With(slog.String("email", req.Email))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Render(w, r, http.StatusBadRequest, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	account, token, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn("login failed", sl.Err(err))
		auth.RenderError(w, r, err)
		return
	}

	log.Info("login success", slog.String("uid", account.UID))
	render.JSON(w, r, Response{Token: token, UserID: account.UID})
}
