package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stack-checkout/internal/services/identity"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   any
	}{
		{
			name:       "wrong password",
			err:        &identity.Error{Code: identity.CodeWrongPassword},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Incorrect password",
			wantCode:   identity.CodeWrongPassword,
		},
		{
			name:       "email in use",
			err:        &identity.Error{Code: identity.CodeEmailAlreadyInUse},
			wantStatus: http.StatusConflict,
			wantError:  "This email address is already in use. Please use a different email or try signing in.",
			wantCode:   identity.CodeEmailAlreadyInUse,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Authentication error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RenderError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantError, got["error"])
			assert.Equal(t, tt.wantCode, got["code"])
		})
	}
}
