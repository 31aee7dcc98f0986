package cancellation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stack-checkout/internal/models"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/storage"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockGateway) FindCustomerByEmail(ctx context.Context, email string) (*paymentprovider.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Customer), args.Error(1)
}

func (m *MockGateway) ListActiveSubscriptions(ctx context.Context, customerID string) ([]paymentprovider.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]paymentprovider.Subscription), args.Error(1)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Get(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	return m.Called(ctx, userUID, customerID).Error(0)
}

func (m *MockUsers) MarkCanceled(ctx context.Context, userUID string, expireDate *time.Time) error {
	return m.Called(ctx, userUID, expireDate).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string {
	return &s
}

func newService() (*Service, *MockGateway, *MockUsers, *MockPublisher) {
	g, u, p := new(MockGateway), new(MockUsers), new(MockPublisher)
	g.On("Configured").Return(true).Maybe()
	return New(newNoopLogger(), g, u, p), g, u, p
}

func TestCancel_TwoSubscriptionsLatestPeriodEndWins(t *testing.T) {
	svc, g, u, p := newService()
	ctx := context.Background()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	u.On("Get", mock.Anything, "uid-1").
		Return(&models.User{ID: "uid-1", Email: "a@b.com", StripeCustomerID: strPtr("cus_1")}, nil)
	g.On("ListActiveSubscriptions", mock.Anything, "cus_1").Return([]paymentprovider.Subscription{
		{ID: "sub_late", CurrentPeriodEnd: t2},
		{ID: "sub_early", CurrentPeriodEnd: t1},
	}, nil)
	g.On("CancelSubscription", mock.Anything, "sub_late").
		Return(&paymentprovider.Subscription{ID: "sub_late", Status: "canceled", CurrentPeriodEnd: t2}, nil)
	g.On("CancelSubscription", mock.Anything, "sub_early").
		Return(&paymentprovider.Subscription{ID: "sub_early", Status: "canceled", CurrentPeriodEnd: t1}, nil)
	u.On("MarkCanceled", mock.Anything, "uid-1", mock.MatchedBy(func(d *time.Time) bool {
		return d != nil && d.Equal(t2)
	})).Return(nil)
	p.On("Publish", mock.Anything, rabbitmq.RoutingSubscriptionCanceled, mock.MatchedBy(func(m models.CancellationMessage) bool {
		return m.Email == "a@b.com" && m.ExpireDate != nil && m.ExpireDate.Equal(t2)
	})).Return(nil)

	res, err := svc.Cancel(ctx, Request{UserID: "uid-1"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"sub_late", "sub_early"}, res.CanceledSubscriptions)
	require.NotNil(t, res.ExpireDate)
	assert.True(t, res.ExpireDate.Equal(t2))
	assert.Equal(t, "cus_1", res.StripeCustomerID)
	assert.False(t, res.NoSubscription)
	g.AssertNotCalled(t, "FindCustomerByEmail", mock.Anything, mock.Anything)
	u.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestCancel_ZeroActiveSubscriptions(t *testing.T) {
	svc, g, u, p := newService()

	u.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, fmt.Errorf("wrap: %w", storage.ErrUserNotFound))
	g.On("ListActiveSubscriptions", mock.Anything, "cus_9").Return([]paymentprovider.Subscription{}, nil)

	res, err := svc.Cancel(context.Background(), Request{Email: "a@b.com", StripeCustomerID: "cus_9"})
	require.NoError(t, err)

	assert.Empty(t, res.CanceledSubscriptions)
	assert.Nil(t, res.ExpireDate)
	assert.True(t, res.NoSubscription)
	assert.Equal(t, "cus_9", res.StripeCustomerID)
	p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	u.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_CustomerFoundByEmailIsBackfilled(t *testing.T) {
	svc, g, u, p := newService()

	u.On("GetByEmail", mock.Anything, "a@b.com").Return(&models.User{ID: "uid-1", Email: "a@b.com"}, nil)
	g.On("FindCustomerByEmail", mock.Anything, "a@b.com").Return(&paymentprovider.Customer{ID: "cus_2"}, nil)
	u.On("SetStripeCustomerID", mock.Anything, "uid-1", "cus_2").Return(nil)
	g.On("ListActiveSubscriptions", mock.Anything, "cus_2").Return([]paymentprovider.Subscription{{ID: "sub_1"}}, nil)
	g.On("CancelSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{ID: "sub_1"}, nil)
	u.On("MarkCanceled", mock.Anything, "uid-1", (*time.Time)(nil)).Return(nil)
	p.On("Publish", mock.Anything, rabbitmq.RoutingSubscriptionCanceled, mock.Anything).Return(errors.New("channel closed"))

	res, err := svc.Cancel(context.Background(), Request{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub_1"}, res.CanceledSubscriptions)
	assert.Equal(t, "cus_2", res.StripeCustomerID)
	u.AssertExpectations(t)
}

func TestCancel_NoCustomer(t *testing.T) {
	svc, g, u, _ := newService()

	u.On("Get", mock.Anything, "uid-1").Return(&models.User{ID: "uid-1", Email: "a@b.com"}, nil)
	g.On("FindCustomerByEmail", mock.Anything, "a@b.com").Return(nil, paymentprovider.ErrCustomerNotFound)
	u.On("MarkCanceled", mock.Anything, "uid-1", (*time.Time)(nil)).Return(nil)

	res, err := svc.Cancel(context.Background(), Request{UserID: "uid-1"})
	require.NoError(t, err)
	assert.True(t, res.NoSubscription)
	assert.Empty(t, res.StripeCustomerID)
	g.AssertNotCalled(t, "ListActiveSubscriptions", mock.Anything, mock.Anything)
	u.AssertExpectations(t)
}

func TestCancel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		setup   func(g *MockGateway, u *MockUsers)
		wantErr error
	}{
		{
			name: "unknown user id",
			req:  Request{UserID: "missing"},
			setup: func(_ *MockGateway, u *MockUsers) {
				u.On("Get", mock.Anything, "missing").Return(nil, fmt.Errorf("users.Get: %w", storage.ErrUserNotFound))
			},
			wantErr: ErrUserNotFound,
		},
		{
			name: "customer search fails",
			req:  Request{Email: "a@b.com"},
			setup: func(g *MockGateway, u *MockUsers) {
				u.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, storage.ErrUserNotFound)
				g.On("FindCustomerByEmail", mock.Anything, "a@b.com").Return(nil, paymentprovider.ErrUnavailable)
			},
			wantErr: ErrCustomerLookup,
		},
		{
			name: "cancel fails midway",
			req:  Request{Email: "a@b.com", StripeCustomerID: "cus_1"},
			setup: func(g *MockGateway, u *MockUsers) {
				u.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, storage.ErrUserNotFound)
				g.On("ListActiveSubscriptions", mock.Anything, "cus_1").
					Return([]paymentprovider.Subscription{{ID: "sub_1"}, {ID: "sub_2"}}, nil)
				g.On("CancelSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{ID: "sub_1"}, nil)
				g.On("CancelSubscription", mock.Anything, "sub_2").
					Return(nil, &paymentprovider.ProviderError{Type: "invalid_request_error", Message: "No such subscription"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, g, u, _ := newService()
			tt.setup(g, u)

			res, err := svc.Cancel(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			u.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCancel_NotConfigured(t *testing.T) {
	g, u, p := new(MockGateway), new(MockUsers), new(MockPublisher)
	g.On("Configured").Return(false)
	svc := New(newNoopLogger(), g, u, p)

	_, err := svc.Cancel(context.Background(), Request{Email: "a@b.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	u.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestCancel_RepeatKeepsExpireDate(t *testing.T) {
	svc, g, u, _ := newService()
	expire := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	u.On("Get", mock.Anything, "uid-1").Return(&models.User{
		ID: "uid-1", Email: "a@b.com", StripeCustomerID: strPtr("cus_1"),
		Status: models.StatusCanceled, ExpireDate: &expire,
	}, nil)
	g.On("ListActiveSubscriptions", mock.Anything, "cus_1").Return([]paymentprovider.Subscription{}, nil)

	res, err := svc.Cancel(context.Background(), Request{UserID: "uid-1"})
	require.NoError(t, err)
	assert.True(t, res.NoSubscription)
	u.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything, mock.Anything)
}
