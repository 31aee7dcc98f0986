package identity

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/jwt"
)

// Коды ошибок провайдера идентификации.
const (
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
	CodeWeakPassword         = "auth/weak-password"
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeInvalidActionCode    = "auth/invalid-action-code"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeInvalidToken         = "auth/invalid-token"
)

var messages = map[string]string{
	CodeEmailAlreadyInUse:    "This email address is already in use. Please use a different email or try signing in.",
	CodeInvalidEmail:         "Invalid email address",
	CodeOperationNotAllowed:  "Email/password accounts are not enabled",
	CodeWeakPassword:         "Password should be at least 6 characters",
	CodeUserNotFound:         "No account found with this email",
	CodeWrongPassword:        "Incorrect password",
	CodeTooManyRequests:      "Too many failed attempts. Please try again later",
	CodeInvalidActionCode:    "The reset link is invalid or has expired",
	CodeNetworkRequestFailed: "Network error. Please check your connection and try again.",
	CodeInvalidToken:         "Session is invalid or has expired. Please sign in again.",
}

// Error ошибка провайдера идентификации с кодом.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code string, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

// Code возвращает код ошибки или пустую строку, если err не Error.
func Code(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// Message переводит ошибку в сообщение для пользователя.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, jwt.ErrNotConfigured) {
		return "Authentication configuration error"
	}
	if msg, ok := messages[Code(err)]; ok {
		return msg
	}
	return "Authentication error: " + err.Error()
}

// HTTPStatus возвращает HTTP-статус для кода ошибки.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidEmail, CodeWeakPassword, CodeInvalidActionCode:
		return http.StatusBadRequest
	case CodeWrongPassword, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeOperationNotAllowed:
		return http.StatusForbidden
	case CodeUserNotFound:
		return http.StatusNotFound
	case CodeEmailAlreadyInUse:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeNetworkRequestFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
