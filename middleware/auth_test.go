package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomClaims_HasScope(t *testing.T) {
	tests := []struct {
		name          string
		scope         string
		expectedScope string
		want          bool
	}{
		{
			name:          "has exact scope",
			scope:         "read:orders",
			expectedScope: "read:orders",
			want:          true,
		},
		{
			name:          "has scope in multiple scopes",
			scope:         "read:profile read:orders write:orders",
			expectedScope: "read:orders",
			want:          true,
		},
		{
			name:          "does not have scope",
			scope:         "read:profile",
			expectedScope: "read:orders",
			want:          false,
		},
		{
			name:          "empty scope",
			scope:         "",
			expectedScope: "read:orders",
			want:          false,
		},
		{
			name:          "partial match should not work",
			scope:         "read:orders",
			expectedScope: "read",
			want:          false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := CustomClaims{Scope: tt.scope}
			assert.Equal(t, tt.want, claims.HasScope(tt.expectedScope))
		})
	}
}

type stubValidator struct {
	claims interface{}
	err    error
}

func (s stubValidator) ValidateToken(_ context.Context, _ string) (interface{}, error) {
	return s.claims, s.err
}

func TestJWTAuthorizer_Authorize(t *testing.T) {
	withScope := func(scope string) *validator.ValidatedClaims {
		return &validator.ValidatedClaims{CustomClaims: &CustomClaims{Scope: scope}}
	}

	tests := []struct {
		name       string
		validator  stubValidator
		credential string
		wantErr    bool
	}{
		{
			name:       "valid token with admin scope",
			validator:  stubValidator{claims: withScope("read:orders")},
			credential: "token",
		},
		{
			name:       "valid token without admin scope",
			validator:  stubValidator{claims: withScope("read:profile")},
			credential: "token",
			wantErr:    true,
		},
		{
			name:       "invalid token",
			validator:  stubValidator{err: errors.New("expired")},
			credential: "token",
			wantErr:    true,
		},
		{
			name:       "unexpected claims type",
			validator:  stubValidator{claims: "claims"},
			credential: "token",
			wantErr:    true,
		},
		{
			name:       "missing token",
			validator:  stubValidator{claims: withScope("read:orders")},
			credential: "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer := NewTokenAuthorizer(tt.validator, AdminScope)
			err := authorizer.Authorize(context.Background(), tt.credential)
			if tt.wantErr {
				assert.ErrorIs(t, err, services.ErrUnauthorized)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAdminCredential(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		headers  map[string]string
		want     string
		wantCode string
	}{
		{
			name:    "shared secret header",
			headers: map[string]string{AdminSecretHeader: "s3cret"},
			want:    "s3cret",
		},
		{
			name:    "bearer token",
			headers: map[string]string{"Authorization": "Bearer abc.def.ghi"},
			want:    "abc.def.ghi",
		},
		{
			name:    "secret header wins over bearer token",
			headers: map[string]string{AdminSecretHeader: "s3cret", "Authorization": "Bearer abc"},
			want:    "s3cret",
		},
		{
			name:     "no credentials",
			headers:  map[string]string{},
			wantCode: "MISSING_CREDENTIALS",
		},
		{
			name:     "malformed authorization header",
			headers:  map[string]string{"Authorization": "Basic abc"},
			wantCode: "INVALID_AUTH_HEADER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}

			got, err := AdminCredential(c)
			if tt.wantCode != "" {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.wantCode, authErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthError_Error(t *testing.T) {
	err := &AuthError{Code: "TEST_ERROR", Message: "This is a test error"}
	assert.Equal(t, "This is a test error", err.Error())
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusTeapot, "pong")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
