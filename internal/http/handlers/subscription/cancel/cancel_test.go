package cancel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stack-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/stack-checkout/internal/services/cancellation"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Cancel(ctx context.Context, req cancellation.Request) (*cancellation.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*cancellation.Result)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCancelHandler_ServeHTTP(t *testing.T) {
	expire := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           any
		tokenUID       string
		serviceReq     *cancellation.Request
		mockResp       *cancellation.Result
		mockErr        error
		wantStatusCode int
		wantBody       map[string]any
		wantNoExpire   bool
	}{
		{
			name:           "neither user id nor email",
			body:           Request{},
			wantStatusCode: http.StatusBadRequest,
			wantBody: map[string]any{
				"error": "field UserID is required when Email is empty, field Email is required when UserID is empty",
			},
		},
		{
			name:           "user id without token",
			body:           Request{UserID: "uid-1"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "user id of someone else",
			body:           Request{UserID: "uid-1"},
			tokenUID:       "uid-2",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "by user id",
			body:       Request{UserID: "uid-1"},
			tokenUID:   "uid-1",
			serviceReq: &cancellation.Request{UserID: "uid-1"},
			mockResp: &cancellation.Result{
				CanceledSubscriptions: []string{"sub_1", "sub_2"},
				ExpireDate:            &expire,
				StripeCustomerID:      "cus_1",
			},
			wantStatusCode: http.StatusOK,
			wantBody: map[string]any{
				"success":               true,
				"message":               "Subscription canceled successfully",
				"canceledSubscriptions": []any{"sub_1", "sub_2"},
				"expireDate":            "2026-02-01T00:00:00Z",
				"stripeCustomerId":      "cus_1",
			},
		},
		{
			name:       "by email without subscriptions",
			body:       Request{Email: "a@b.com"},
			serviceReq: &cancellation.Request{Email: "a@b.com"},
			mockResp: &cancellation.Result{
				CanceledSubscriptions: []string{},
				NoSubscription:        true,
			},
			wantStatusCode: http.StatusOK,
			wantBody: map[string]any{
				"success":        true,
				"message":        "No active subscription found",
				"noSubscription": true,
			},
			wantNoExpire: true,
		},
		{
			name:           "unknown user",
			body:           Request{UserID: "uid-1"},
			tokenUID:       "uid-1",
			serviceReq:     &cancellation.Request{UserID: "uid-1"},
			mockErr:        cancellation.ErrUserNotFound,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "customer search failure",
			body:           Request{Email: "a@b.com"},
			serviceReq:     &cancellation.Request{Email: "a@b.com"},
			mockErr:        fmt.Errorf("%w: %w", cancellation.ErrCustomerLookup, paymentprovider.ErrUnavailable),
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       map[string]any{"error": "Failed to find customer in payment system"},
		},
		{
			name:       "stripe error",
			body:       Request{Email: "a@b.com", StripeCustomerID: "cus_1"},
			serviceReq: &cancellation.Request{Email: "a@b.com", StripeCustomerID: "cus_1"},
			mockErr: fmt.Errorf("cancellation.Cancel: %w",
				&paymentprovider.ProviderError{Type: "invalid_request_error", Message: "No such subscription"}),
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       map[string]any{"error": "Stripe error: invalid_request_error - No such subscription"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.serviceReq != nil {
				svc.On("Cancel", mock.Anything, *tt.serviceReq).Return(tt.mockResp, tt.mockErr).Once()
			}

			body, err := json.Marshal(tt.body)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/subscriptions/cancel", bytes.NewReader(body))
			if tt.tokenUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.tokenUID))
			}
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			for k, v := range tt.wantBody {
				assert.Equal(t, v, got[k], k)
			}
			if tt.wantNoExpire {
				_, ok := got["expireDate"]
				assert.False(t, ok)
			}
			if tt.serviceReq == nil {
				svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
			}
		})
	}
}
