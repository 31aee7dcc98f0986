// Package middlewarectx содержит HTTP middleware для обработки и проверки JWT токенов,
// ограничения частоты запросов и сбора метрик.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха добавляет в контекст UID пользователя, email и сам токен.
// OptionalJWTMiddleware делает то же, но пропускает запросы без заголовка.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID: ключ для UID пользователя в контексте
	UserUID Key = "user_uid"
	// Email: ключ для email пользователя в контексте
	Email Key = "email"
	// Token: ключ для исходного токена в контексте
	Token Key = "token"
)

// UserUIDFrom возвращает UID пользователя из контекста.
func UserUIDFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}

// TokenFrom возвращает токен из контекста.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(Token).(string)
	return token, ok && token != ""
}

// JWTMiddleware возвращает HTTP middleware, который требует валидный JWT в заголовке Authorization.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(auth, log, true)
}

// OptionalJWTMiddleware пропускает запросы без заголовка Authorization,
// но отклоняет запросы с невалидным токеном.
func OptionalJWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(auth, log, false)
}

func jwtMiddleware(auth Authenticator, log *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			authHeader := r.Header.Get("Authorization")

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if authHeader == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				response.Render(w, r, http.StatusUnauthorized,
					response.ErrorWithCode("missing or invalid authorization header", identity.CodeInvalidToken))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := auth.Authenticate(r.Context(), tokenStr)
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				code := identity.Code(err)
				if errors.Is(err, jwt.ErrNotConfigured) {
					response.Render(w, r, http.StatusInternalServerError, response.Error(identity.Message(err)))
					return
				}
				if code == "" {
					response.Render(w, r, http.StatusInternalServerError, response.Error("internal error"))
					return
				}
				response.Render(w, r, identity.HTTPStatus(code), response.ErrorWithCode(identity.Message(err), code))
				return
			}

			ctx := context.WithValue(r.Context(), UserUID, claims.UserUID())
			ctx = context.WithValue(ctx, Email, claims.Email)
			ctx = context.WithValue(ctx, Token, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
