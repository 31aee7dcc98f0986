// Package me реализует HTTP-обработчик чтения записи текущего пользователя.
// Страница отмены показывает по нему статус подписки.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stack-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

// Service описывает интерфейс чтения записи пользователя.
type Service interface {
	Get(ctx context.Context, userUID string) (*models.User, error)
}

// Response запись пользователя с названием оплаченного плана.
type Response struct {
	*models.User
	PlanName  string `json:"planName,omitempty"`
	PlanLabel string `json:"planLabel,omitempty"`
}

// Handler возвращает запись пользователя из токена. Требует JWTMiddleware.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.me"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		response.Render(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}

	user, err := h.service.Get(r.Context(), uid)
	if errors.Is(err, storage.ErrUserNotFound) {
		log.Warn("user record not found", slog.String("uid", uid))
		response.Render(w, r, http.StatusNotFound, response.Error("User not found"))
		return
	}
	if err != nil {
		log.Error("failed to get user", sl.Err(err))
		response.Render(w, r, http.StatusInternalServerError, response.Error("internal error"))
		return
	}

	resp := Response{User: user}
	if plan, ok := models.Plans(nil)[user.PlanID]; ok {
		resp.PlanName = plan.Name
		resp.PlanLabel = plan.PublicLabel
	}
	render.JSON(w, r, resp)
}
