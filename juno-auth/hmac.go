package junoauth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMAC verifies HS256 tokens signed with a shared secret. It is intended for
// local console mode, where there is no Cognito user pool.
type HMAC struct {
	Secret []byte
}

func (h HMAC) Verify(_ context.Context, token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return h.Secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: claims type mismatch", ErrInvalidToken)
	}
	return claimsFrom(claims), nil
}

// Sign issues an HS256 token; used by the local chat client and tests.
func (h HMAC) Sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.Secret)
}
