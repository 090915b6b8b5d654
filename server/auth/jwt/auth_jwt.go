// Package jwt implements identity verification of JWT bearer credentials
// issued by the dashboard's authentication subsystem.
package jwt

import (
	"errors"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/zentrio/fabric/server/auth"
)

// Claims is the claim set the dashboard puts into access tokens. The account
// ID travels in the standard "sub" claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// Verifier validates HS256-signed JWTs.
type Verifier struct {
	key    []byte
	issuer string
	parser *jwtlib.Parser
}

// New creates a JWT verifier. If issuer is non-empty, the "iss" claim is
// required to match.
func New(key []byte, issuer string) (*Verifier, error) {
	if len(key) == 0 {
		return nil, errors.New("auth_jwt: signing key is missing")
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(issuer))
	}

	return &Verifier{key: key, issuer: issuer, parser: jwtlib.NewParser(opts...)}, nil
}

// Verify checks the token signature and standard claims.
func (v *Verifier) Verify(credential string) (*auth.Identity, error) {
	if credential == "" {
		return nil, auth.ErrMissingCredential
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(credential, &claims, func(*jwtlib.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, auth.ErrExpiredCredential
		}
		return nil, auth.ErrInvalidCredential
	}

	if claims.Subject == "" {
		return nil, auth.ErrInvalidCredential
	}

	return &auth.Identity{ID: claims.Subject, Email: claims.Email}, nil
}
