// Package users предоставляет доступ к записям пользователей с кэшированием в Redis.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
)

// CacheTTL время жизни записи пользователя в кэше.
const CacheTTL = 10 * time.Minute

// Storage хранилище записей пользователей.
type Storage interface {
	SaveUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error
	MarkUserCanceled(ctx context.Context, userUID string, expireDate *time.Time) error
}

// Cache кэш записей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service сервис записей пользователей.
type Service struct {
	log     *slog.Logger
	storage Storage
	cache   Cache
}

// New создает сервис записей пользователей.
func New(log *slog.Logger, storage Storage, cache Cache) *Service {
	return &Service{
		log:     log,
		storage: storage,
		cache:   cache,
	}
}

func cacheKey(userUID string) string {
	return "user:" + userUID
}

// Get возвращает запись пользователя. Ошибки кэша не прерывают чтение из хранилища.
func (s *Service) Get(ctx context.Context, userUID string) (*models.User, error) {
	const op = "users.Get"
	log := s.log.With(sl.Op(op), slog.String("user_id", userUID))

	var cached models.User
	found, err := s.cache.Get(ctx, cacheKey(userUID), &cached)
	if err != nil {
		log.Warn("failed to read user from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.storage.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, cacheKey(userUID), user, CacheTTL); err != nil {
		log.Warn("failed to cache user", sl.Err(err))
	}
	return user, nil
}

// GetByEmail возвращает запись пользователя по email. Кэш не используется.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "users.GetByEmail"
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Save создает или перезаписывает запись пользователя.
func (s *Service) Save(ctx context.Context, user models.User) error {
	const op = "users.Save"
	if err := s.storage.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op, user.ID)
	return nil
}

// SetStripeCustomerID сохраняет найденную ссылку на покупателя.
func (s *Service) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "users.SetStripeCustomerID"
	if err := s.storage.SetStripeCustomerID(ctx, userUID, customerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op, userUID)
	return nil
}

// MarkCanceled переводит пользователя в статус canceled.
func (s *Service) MarkCanceled(ctx context.Context, userUID string, expireDate *time.Time) error {
	const op = "users.MarkCanceled"
	if err := s.storage.MarkUserCanceled(ctx, userUID, expireDate); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op, userUID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, op, userUID string) {
	if err := s.cache.Invalidate(ctx, cacheKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate user cache", sl.Op(op), slog.String("user_id", userUID), sl.Err(err))
	}
}
