// Package junoauth verifies bearer tokens presented by relay clients and
// applies the connect-time identity policy: a missing or invalid token
// degrades to an anonymous identity instead of rejecting the connection.
package junoauth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// AnonymousUserID is the identity of sessions without a verified token.
const AnonymousUserID = "anonymous"

var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity claims extracted from a verified token.
type Claims struct {
	Subject string
	Email   string
}

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Identity is the user a relay session acts as.
type Identity struct {
	UserID    string
	UserEmail string
}

func (i Identity) Anonymous() bool {
	return i.UserID == AnonymousUserID
}

// Authenticate verifies token and never fails: absent tokens, a nil verifier
// and verification failures all yield the anonymous identity.
func Authenticate(ctx context.Context, verifier Verifier, token string) Identity {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" || verifier == nil {
		return Identity{UserID: AnonymousUserID}
	}

	claims, err := verifier.Verify(ctx, token)
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Msg("token verification failed, continuing as anonymous")
		return Identity{UserID: AnonymousUserID}
	}
	if claims.Subject == "" {
		return Identity{UserID: AnonymousUserID}
	}
	return Identity{UserID: claims.Subject, UserEmail: claims.Email}
}

func claimsFrom(m map[string]interface{}) Claims {
	var c Claims
	c.Subject, _ = m["sub"].(string)
	c.Email, _ = m["email"].(string)
	return c
}
