// Package auth resolves the username of an incoming connection or request
// from a JWT, a trusted client-supplied name or the guest fallback.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

type Claims struct {
	jwt.StandardClaims // sub is the username
}

// Verifier checks access tokens signed with HS256 (shared secret) or RS256 (public key).
type Verifier struct {
	method    jwt.SigningMethod
	key       any
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
}

type VerifierConfig struct {
	Alg       string
	Secret    []byte
	PublicKey *rsa.PublicKey
	Issuer    string // empty skips the check
	Audience  string // empty skips the check
	ClockSkew time.Duration
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		clockSkew: cfg.ClockSkew,
		now:       time.Now,
	}

	switch strings.ToUpper(cfg.Alg) {
	case "", AlgHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("auth: HS256 requires a secret")
		}
		v.method, v.key = jwt.SigningMethodHS256, cfg.Secret
	case AlgRS256:
		if cfg.PublicKey == nil {
			return nil, errors.New("auth: RS256 requires a public key")
		}
		v.method, v.key = jwt.SigningMethodRS256, cfg.PublicKey
	default:
		return nil, fmt.Errorf("auth: unsupported alg %q", cfg.Alg)
	}

	return v, nil
}

// Verify parses tokenStr and returns the username in its sub claim.
func (v *Verifier) Verify(tokenStr string) (string, error) {
	claims := &Claims{}
	parser := &jwt.Parser{SkipClaimsValidation: true} // exp/nbf are checked below with skew
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, ErrInvalidToken
		}
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return "", ErrInvalidAudience
	}

	now := v.now()
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return "", ErrTokenExpired
	}
	if claims.ExpiresAt != 0 && now.After(time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)) {
		return "", ErrTokenExpired
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", ErrInvalidSubject
	}

	return sub, nil
}

// Signer issues tokens the Verifier accepts. Used by tests and local tooling.
type Signer struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience string
	ttl      time.Duration
}

// NewHS256Signer signs with a shared secret.
func NewHS256Signer(secret []byte, issuer, audience string, ttl time.Duration) *Signer {
	return &Signer{method: jwt.SigningMethodHS256, key: secret, issuer: issuer, audience: audience, ttl: ttl}
}

// NewRS256Signer signs with an RSA private key.
func NewRS256Signer(key *rsa.PrivateKey, issuer, audience string, ttl time.Duration) *Signer {
	return &Signer{method: jwt.SigningMethodRS256, key: key, issuer: issuer, audience: audience, ttl: ttl}
}

// Sign issues a token with sub=username and exp=now+ttl.
func (s *Signer) Sign(username string, now time.Time) (string, error) {
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   username,
			Issuer:    s.issuer,
			Audience:  s.audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return pub, nil
}
