package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stack-checkout/internal/cache"
	"github.com/magabrotheeeer/stack-checkout/internal/config"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(ctx context.Context, user models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockStorage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	return m.Called(ctx, userUID, customerID).Error(0)
}

func (m *MockStorage) MarkUserCanceled(ctx context.Context, userUID string, expireDate *time.Time) error {
	return m.Called(ctx, userUID, expireDate).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *MockStorage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	st := new(MockStorage)
	return New(newNoopLogger(), st, c), st, mr
}

func TestService_GetCachesUser(t *testing.T) {
	svc, st, mr := newTestService(t)
	ctx := context.Background()

	user := &models.User{ID: "uid-1", Email: "a@b.com", Status: models.StatusActive}
	st.On("GetUser", mock.Anything, "uid-1").Return(user, nil).Once()

	got, err := svc.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Email)
	assert.True(t, mr.Exists("user:uid-1"))

	// Второй вызов обслуживается кэшем.
	got, err = svc.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.ID)
	st.AssertNumberOfCalls(t, "GetUser", 1)

	ttl := mr.TTL("user:uid-1")
	assert.Equal(t, CacheTTL, ttl)
}

func TestService_GetNotFound(t *testing.T) {
	svc, st, _ := newTestService(t)

	st.On("GetUser", mock.Anything, "missing").Return(nil, storage.ErrUserNotFound)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestService_GetFallsBackWhenCacheDown(t *testing.T) {
	svc, st, mr := newTestService(t)
	mr.Close()

	st.On("GetUser", mock.Anything, "uid-1").Return(&models.User{ID: "uid-1"}, nil)

	got, err := svc.Get(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.ID)
}

func TestService_WritesInvalidateCache(t *testing.T) {
	tests := []struct {
		name  string
		setup func(st *MockStorage)
		write func(svc *Service) error
	}{
		{
			name: "save",
			setup: func(st *MockStorage) {
				st.On("SaveUser", mock.Anything, mock.MatchedBy(func(u models.User) bool { return u.ID == "uid-1" })).Return(nil)
			},
			write: func(svc *Service) error {
				return svc.Save(context.Background(), models.User{ID: "uid-1"})
			},
		},
		{
			name: "set customer",
			setup: func(st *MockStorage) {
				st.On("SetStripeCustomerID", mock.Anything, "uid-1", "cus_1").Return(nil)
			},
			write: func(svc *Service) error {
				return svc.SetStripeCustomerID(context.Background(), "uid-1", "cus_1")
			},
		},
		{
			name: "mark canceled",
			setup: func(st *MockStorage) {
				st.On("MarkUserCanceled", mock.Anything, "uid-1", (*time.Time)(nil)).Return(nil)
			},
			write: func(svc *Service) error {
				return svc.MarkCanceled(context.Background(), "uid-1", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, mr := newTestService(t)
			require.NoError(t, mr.Set("user:uid-1", `{"id":"uid-1"}`))
			tt.setup(st)

			require.NoError(t, tt.write(svc))
			assert.False(t, mr.Exists("user:uid-1"))
			st.AssertExpectations(t)
		})
	}
}

func TestService_WriteErrorKeepsCache(t *testing.T) {
	svc, st, mr := newTestService(t)
	require.NoError(t, mr.Set("user:uid-1", `{"id":"uid-1"}`))

	st.On("MarkUserCanceled", mock.Anything, "uid-1", mock.Anything).Return(errors.New("db down"))

	err := svc.MarkCanceled(context.Background(), "uid-1", nil)
	require.Error(t, err)
	assert.True(t, mr.Exists("user:uid-1"))
}

func TestService_GetByEmail(t *testing.T) {
	svc, st, _ := newTestService(t)
	st.On("GetUserByEmail", mock.Anything, "a@b.com").Return(&models.User{ID: "uid-2"}, nil)

	got, err := svc.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-2", got.ID)
}
