// Package identity реализует провайдер идентификации: учетные записи по email и паролю,
// вход и выход по JWT, сброс пароля через одноразовую ссылку.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/password"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

// ResetTTL время жизни ссылки сброса пароля.
const ResetTTL = 30 * time.Minute

// Accounts хранилище учетных записей.
type Accounts interface {
	CreateAccount(ctx context.Context, account models.Account) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateAccountPassword(ctx context.Context, uid, passwordHash string) error
}

// TokenStore хранилище одноразовых токенов и отозванных JWT.
type TokenStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Take(ctx context.Context, key string, result any) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Publisher публикует уведомления для отправителя писем.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Options настройки провайдера.
type Options struct {
	// ResetURL адрес страницы сброса пароля, к нему добавляется ?token=.
	ResetURL string
	// Disabled запрещает вход и регистрацию по паролю.
	Disabled bool
}

// Service провайдер идентификации.
type Service struct {
	log       *slog.Logger
	accounts  Accounts
	tokens    TokenStore
	jwtMaker  jwt.Maker
	publisher Publisher
	opts      Options
	validate  *validator.Validate
	now       func() time.Time
}

// New создает провайдер идентификации.
func New(log *slog.Logger, accounts Accounts, tokens TokenStore, jwtMaker jwt.Maker, publisher Publisher, opts Options) *Service {
	return &Service{
		log:       log,
		accounts:  accounts,
		tokens:    tokens,
		jwtMaker:  jwtMaker,
		publisher: publisher,
		opts:      opts,
		validate:  validator.New(),
		now:       time.Now,
	}
}

func (s *Service) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return newError(CodeInvalidEmail, nil)
	}
	return nil
}

// SignUp создает учетную запись.
func (s *Service) SignUp(ctx context.Context, email, rawPassword string) (*models.Account, error) {
	const op = "identity.SignUp"
	log := s.log.With(sl.Op(op), slog.String("email", email))

	if s.opts.Disabled {
		return nil, newError(CodeOperationNotAllowed, nil)
	}
	email = strings.TrimSpace(email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	if err := password.Validate(rawPassword); err != nil {
		return nil, newError(CodeWeakPassword, err)
	}

	hash, err := password.Hash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	account, err := s.accounts.CreateAccount(ctx, models.Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, storage.ErrAccountExists) {
		return nil, newError(CodeEmailAlreadyInUse, err)
	}
	if err != nil {
		log.Error("failed to create account", sl.Err(err))
		return nil, newError(CodeNetworkRequestFailed, err)
	}

	log.Info("account created", slog.String("uid", account.UID))
	return account, nil
}

// SignIn проверяет пароль и выпускает JWT.
func (s *Service) SignIn(ctx context.Context, email, rawPassword string) (*models.Account, string, error) {
	const op = "identity.SignIn"
	log := s.log.With(sl.Op(op), slog.String("email", email))

	if s.opts.Disabled {
		return nil, "", newError(CodeOperationNotAllowed, nil)
	}
	email = strings.TrimSpace(email)
	if err := s.checkEmail(email); err != nil {
		return nil, "", err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return nil, "", newError(CodeUserNotFound, err)
	}
	if err != nil {
		log.Error("failed to load account", sl.Err(err))
		return nil, "", newError(CodeNetworkRequestFailed, err)
	}

	if err := password.Compare(account.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, "", newError(CodeWrongPassword, err)
		}
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	token, _, err := s.jwtMaker.GenerateToken(account.UID, account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return account, token, nil
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

// Authenticate проверяет JWT и возвращает его claims. Отозванный токен недействителен.
func (s *Service) Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "identity.Authenticate"
	claims, err := s.jwtMaker.ParseToken(token)
	if errors.Is(err, jwt.ErrNotConfigured) {
		s.log.Error("JWT_SECRET_KEY is not set", sl.Op(op))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return nil, newError(CodeInvalidToken, err)
	}
	if claims.ID != "" {
		revoked, err := s.tokens.Exists(ctx, revokedKey(claims.ID))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if revoked {
			return nil, newError(CodeInvalidToken, nil)
		}
	}
	return claims, nil
}

// SignOut отзывает токен до истечения его срока.
func (s *Service) SignOut(ctx context.Context, token string) error {
	const op = "identity.SignOut"
	claims, err := s.jwtMaker.ParseToken(token)
	if errors.Is(err, jwt.ErrNotConfigured) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return newError(CodeInvalidToken, err)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.tokens.Set(ctx, revokedKey(claims.ID), true, ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("token revoked", sl.Op(op), slog.String("uid", claims.UserUID()))
	return nil
}

func resetKey(token string) string {
	return "reset:" + token
}

// RequestPasswordReset создает одноразовую ссылку сброса и ставит письмо в очередь.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "identity.RequestPasswordReset"
	log := s.log.With(sl.Op(op), slog.String("email", email))

	email = strings.TrimSpace(email)
	if err := s.checkEmail(email); err != nil {
		return err
	}
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return newError(CodeUserNotFound, err)
	}
	if err != nil {
		return newError(CodeNetworkRequestFailed, err)
	}

	token := uuid.NewString()
	if err := s.tokens.Set(ctx, resetKey(token), account.UID, ResetTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.PasswordResetMessage{
		Email:     account.Email,
		ResetLink: s.opts.ResetURL + "?token=" + token,
		ExpiresAt: s.now().Add(ResetTTL).UTC(),
	}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingPasswordReset, msg); err != nil {
		log.Error("failed to publish password reset", sl.Err(err))
		return newError(CodeNetworkRequestFailed, err)
	}

	log.Info("password reset requested")
	return nil
}

// ResetPassword устанавливает новый пароль по одноразовому токену.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "identity.ResetPassword"

	if err := password.Validate(newPassword); err != nil {
		return newError(CodeWeakPassword, err)
	}

	var uid string
	found, err := s.tokens.Take(ctx, resetKey(token), &uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return newError(CodeInvalidActionCode, nil)
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.accounts.UpdateAccountPassword(ctx, uid, hash); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return newError(CodeUserNotFound, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset completed", sl.Op(op), slog.String("uid", uid))
	return nil
}
