// Package logout реализует HTTP-обработчик выхода: текущий токен отзывается.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stack-checkout/internal/http/handlers/auth"
	"github.com/magabrotheeeer/stack-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
)

// Service описывает интерфейс выхода.
type Service interface {
	SignOut(ctx context.Context, token string) error
}

// Handler обрабатывает выход. Требует JWTMiddleware.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := middlewarectx.TokenFrom(r.Context())
	if !ok {
		log.Error("token not found in context")
		response.Render(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}

	if err := h.service.SignOut(r.Context(), token); err != nil {
		log.Error("failed to sign out", sl.Err(err))
		auth.RenderError(w, r, err)
		return
	}

	log.Info("signed out")
	render.JSON(w, r, map[string]any{"success": true})
}
