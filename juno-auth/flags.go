package junoauth

import (
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/urfave/cli/v2"
)

var AuthOpts struct {
	Region     string
	UserPoolID string
	ClientID   string
	JWTSecret  string
}

var AuthFlags = []cli.Flag{
	junocli.StringFlag("cognito-region", "Region of the Cognito user pool", &AuthOpts.Region, "us-east-1"),
	junocli.StringFlag("cognito-user-pool-id", "Cognito user pool that issues client tokens", &AuthOpts.UserPoolID),
	junocli.StringFlag("cognito-client-id", "Expected Cognito app client id", &AuthOpts.ClientID),
	junocli.StringFlag("jwt-secret", "Shared HS256 secret, used instead of Cognito when set (local only)", &AuthOpts.JWTSecret),
}

// Build returns the verifier selected by the auth flags, or nil when none is
// configured (every session is then anonymous).
func Build() Verifier {
	switch {
	case AuthOpts.JWTSecret != "":
		return HMAC{Secret: []byte(AuthOpts.JWTSecret)}
	case AuthOpts.UserPoolID != "":
		return NewCognito(AuthOpts.Region, AuthOpts.UserPoolID, AuthOpts.ClientID)
	default:
		return nil
	}
}
