// Package auth validates caller identity: JWTs against a remote JWKS
// endpoint, plus cookie sessions for browser clients.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims the builder cares about. Subject is the user id
// every app grant and message is recorded under.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// JWTValidator validates JWTs using keys fetched from a JWKS endpoint.
type JWTValidator struct {
	jwks     keyfunc.Keyfunc
	audience string
	issuer   string
}

// NewJWTValidator creates a validator that fetches and caches keys from the
// JWKS endpoint.
func NewJWTValidator(jwksURL, audience, issuer string) (*JWTValidator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	return &JWTValidator{
		jwks:     k,
		audience: audience,
		issuer:   issuer,
	}, nil
}

// Validate parses and validates a JWT, returning its claims.
func (v *JWTValidator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil {
			return nil, fmt.Errorf("failed to get audience: %w", err)
		}
		audienceValid := false
		for _, a := range aud {
			if a == v.audience {
				audienceValid = true
				break
			}
		}
		if !audienceValid {
			return nil, fmt.Errorf("invalid audience")
		}
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// GetUserID extracts the user id from validated claims.
func (v *JWTValidator) GetUserID(claims *Claims) string {
	return claims.Subject
}
