package testutil

import (
	"context"
	"errors"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/girish1208dev/print-service/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// StubTokenValidator accepts a fixed set of tokens, each mapped to its claims
type StubTokenValidator map[string]*validator.ValidatedClaims

// ValidateToken implements middleware.TokenValidator
func (s StubTokenValidator) ValidateToken(_ context.Context, token string) (interface{}, error) {
	claims, ok := s[token]
	if !ok {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}
