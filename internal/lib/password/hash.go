// Package password реализует хеширование и проверку паролей учетных записей.
package password

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinLength минимальная длина пароля.
const MinLength = 6

var (
	// ErrTooWeak пароль короче MinLength символов.
	ErrTooWeak = errors.New("password is too weak")
	// ErrMismatch пароль не соответствует хэшу.
	ErrMismatch = errors.New("password does not match")
)

// Validate проверяет требования к паролю.
func Validate(raw string) error {
	if utf8.RuneCountInString(raw) < MinLength {
		return ErrTooWeak
	}
	return nil
}

// Hash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func Hash(raw string) (string, error) {
	const op = "password.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Compare сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает ErrMismatch, если пароль не подходит.
func Compare(hash, raw string) error {
	const op = "password.Compare"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
