package resetconfirm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResetConfirmHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockErr    error
		callSvc    bool
		wantStatus int
		wantError  string
	}{
		{name: "changed", body: `{"token":"t1","password":"newpass1"}`, callSvc: true, wantStatus: http.StatusOK},
		{name: "missing token", body: `{"password":"newpass1"}`, wantStatus: http.StatusBadRequest, wantError: "field Token is a required field"},
		{
			name:       "expired link",
			body:       `{"token":"t1","password":"newpass1"}`,
			mockErr:    &identity.Error{Code: identity.CodeInvalidActionCode},
			callSvc:    true,
			wantStatus: http.StatusBadRequest,
			wantError:  "The reset link is invalid or has expired",
		},
		{
			name:       "weak password",
			body:       `{"token":"t1","password":"newpass1"}`,
			mockErr:    &identity.Error{Code: identity.CodeWeakPassword},
			callSvc:    true,
			wantStatus: http.StatusBadRequest,
			wantError:  "Password should be at least 6 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.callSvc {
				svc.On("ResetPassword", mock.Anything, "t1", "newpass1").Return(tt.mockErr).Once()
			}
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/auth/password-reset/confirm", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, true, got["success"])
			}
		})
	}
}
