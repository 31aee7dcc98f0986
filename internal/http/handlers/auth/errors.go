// Package auth содержит общие части обработчиков входа, выхода и сброса пароля.
package auth

import (
	"net/http"

	"github.com/magabrotheeeer/stack-checkout/internal/http/response"
	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
)

// RenderError переводит ошибку провайдера идентификации в HTTP-ответ
// с сообщением для пользователя и кодом ошибки.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	code := identity.Code(err)
	if code == "" {
		response.Render(w, r, http.StatusInternalServerError, response.Error(identity.Message(err)))
		return
	}
	response.Render(w, r, identity.HTTPStatus(code), response.ErrorWithCode(identity.Message(err), code))
}
