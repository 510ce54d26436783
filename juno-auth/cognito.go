package junoauth

import (
	"context"
	"fmt"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Cognito verifies RS256 tokens issued by a Cognito user pool. The pool's
// JWKS is fetched on first use, refreshed hourly, and refetched (rate
// limited) when a token carries an unknown kid.
type Cognito struct {
	// Issuer is https://cognito-idp.<region>.amazonaws.com/<pool-id>
	Issuer string
	// ClientID, when set, must match the aud (id token) or client_id
	// (access token) claim.
	ClientID string
	JWKSURL  string

	once sync.Once
	keys keyfunc.Keyfunc
	err  error
}

// NewCognito builds a verifier for the given pool.
func NewCognito(region, userPoolID, clientID string) *Cognito {
	issuer := fmt.Sprintf("https://cognito-idp.%v.amazonaws.com/%v", region, userPoolID)
	return &Cognito{
		Issuer:   issuer,
		ClientID: clientID,
		JWKSURL:  issuer + "/.well-known/jwks.json",
	}
}

// keyfunc lazily builds the JWKS-backed keyfunc. Its background refresh
// lives as long as the process.
func (c *Cognito) keyfunc() (keyfunc.Keyfunc, error) {
	c.once.Do(func() {
		c.keys, c.err = keyfunc.NewDefaultCtx(context.Background(), []string{c.JWKSURL})
		if c.err != nil {
			c.err = fmt.Errorf("failed to load jwks from %v: %w", c.JWKSURL, c.err)
		}
	})
	return c.keys, c.err
}

func (c *Cognito) Verify(ctx context.Context, token string) (Claims, error) {
	keys, err := c.keyfunc()
	if err != nil {
		return Claims{}, err
	}

	parsed, err := jwt.Parse(token, keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(c.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: claims type mismatch", ErrInvalidToken)
	}

	switch use, _ := claims["token_use"].(string); use {
	case "id":
		if c.ClientID != "" {
			aud, _ := claims.GetAudience()
			if !contains(aud, c.ClientID) {
				return Claims{}, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
			}
		}
	case "access":
		if c.ClientID != "" {
			if clientID, _ := claims["client_id"].(string); clientID != c.ClientID {
				return Claims{}, fmt.Errorf("%w: client_id mismatch", ErrInvalidToken)
			}
		}
	default:
		return Claims{}, fmt.Errorf("%w: unexpected token_use %q", ErrInvalidToken, use)
	}

	return claimsFrom(claims), nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
