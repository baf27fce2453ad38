package middleware

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/config"
	"github.com/girish1208dev/print-service/services"
	"github.com/rs/zerolog/log"
)

// AdminScope is the scope an Auth0 token needs to use the admin surface
const AdminScope = "read:orders"

// AdminSecretHeader carries the shared admin secret
const AdminSecretHeader = "X-Admin-Secret"

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
}

// Validate does nothing here, but we need it to satisfy validator.CustomClaims.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// HasScope checks whether our claims have a specific scope.
func (c CustomClaims) HasScope(expectedScope string) bool {
	result := strings.Split(c.Scope, " ")
	for i := range result {
		if result[i] == expectedScope {
			return true
		}
	}

	return false
}

// TokenValidator validates a raw JWT and returns its claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (interface{}, error)
}

// JWTAuthorizer authorizes admin requests carrying an Auth0 access token with AdminScope
type JWTAuthorizer struct {
	validator TokenValidator
	scope     string
}

// NewJWTAuthorizer builds an authorizer that validates tokens against the Auth0 tenant in cfg
func NewJWTAuthorizer(cfg *config.Config) (*JWTAuthorizer, error) {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	return NewTokenAuthorizer(jwtValidator, AdminScope), nil
}

// NewTokenAuthorizer wraps any token validator, requiring scope on the validated claims
func NewTokenAuthorizer(v TokenValidator, scope string) *JWTAuthorizer {
	return &JWTAuthorizer{validator: v, scope: scope}
}

// Authorize validates the token and checks its scope
func (a *JWTAuthorizer) Authorize(ctx context.Context, credential string) error {
	if credential == "" {
		return services.ErrUnauthorized
	}

	claims, err := a.validator.ValidateToken(ctx, credential)
	if err != nil {
		log.Debug().Err(err).Msg("Encountered error while validating JWT")
		return fmt.Errorf("%w: invalid token", services.ErrUnauthorized)
	}

	validated, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return fmt.Errorf("%w: unexpected claims", services.ErrUnauthorized)
	}
	custom, ok := validated.CustomClaims.(*CustomClaims)
	if !ok || !custom.HasScope(a.scope) {
		return fmt.Errorf("%w: insufficient scope", services.ErrUnauthorized)
	}
	return nil
}

// AdminCredential extracts the admin credential from the request:
// the shared secret header, or a Bearer token
func AdminCredential(c *gin.Context) (string, error) {
	if secret := c.GetHeader(AdminSecretHeader); secret != "" {
		return secret, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", &AuthError{Code: "MISSING_CREDENTIALS", Message: "Admin credentials are required"}
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", &AuthError{Code: "INVALID_AUTH_HEADER", Message: "Authorization header format must be Bearer {token}"}
	}
	return parts[1], nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
