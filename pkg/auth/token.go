// Package auth issues and checks client bearer tokens and admin credentials.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// RoleClient is the only role issued to clients.
const RoleClient = "client"

var (
	// ErrInvalidToken covers malformed, forged and expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWrongRole is returned for a valid token carrying another role.
	ErrWrongRole = errors.New("invalid token role")
)

// ClientClaims identify an authenticated client.
type ClientClaims struct {
	ClientCode string `json:"sub"`
	ClientName string `json:"client_name"`
	Role       string `json:"role"`
}

type tokenClaims struct {
	jwt.Claims
	ClientName string `json:"client_name"`
	Role       string `json:"role"`
}

// Issuer signs and verifies HS256 client tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	signer jose.Signer
	now    func() time.Time
}

// NewIssuer creates an issuer. ttl <= 0 defaults to eight hours.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, signer: signer, now: time.Now}, nil
}

// Issue returns a signed token for the client.
func (i *Issuer) Issue(clientCode, clientName string) (string, error) {
	now := i.now()
	claims := tokenClaims{
		Claims: jwt.Claims{
			Subject:  clientCode,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(i.ttl)),
		},
		ClientName: clientName,
		Role:       RoleClient,
	}
	token, err := jwt.Signed(i.signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature, expiry and role.
func (i *Issuer) Verify(raw string) (ClientClaims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return ClientClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var claims tokenClaims
	if err := tok.Claims(i.secret, &claims); err != nil {
		return ClientClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Expiry == nil {
		return ClientClaims{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	if err := claims.ValidateWithLeeway(jwt.Expected{Time: i.now()}, 0); err != nil {
		return ClientClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Role != RoleClient {
		return ClientClaims{}, ErrWrongRole
	}
	return ClientClaims{ClientCode: claims.Subject, ClientName: claims.ClientName, Role: claims.Role}, nil
}

// AdminChecker validates admin secrets. The password wins over the key when both are set.
type AdminChecker struct {
	secret string
}

// NewAdminChecker creates a checker. An empty secret rejects everything.
func NewAdminChecker(password, key string) AdminChecker {
	if password != "" {
		return AdminChecker{secret: password}
	}
	return AdminChecker{secret: key}
}

// Valid reports whether candidate matches the admin secret, in constant time.
func (a AdminChecker) Valid(candidate string) bool {
	if a.secret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.secret)) == 1
}
