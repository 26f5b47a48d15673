package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWrongKind    = fmt.Errorf("%w: wrong token kind", ErrTokenInvalid)
)

type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenCodec(secret []byte, issuer string, now func() time.Time) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenCodec{
		secret: secret,
		issuer: issuer,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Sign stamps iat/exp/iss onto claims and returns the compact token with its
// expiry.
func (c *TokenCodec) Sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return "", time.Time{}, fmt.Errorf("sign: unknown kind %q", claims.Kind)
	}
	now := c.now()
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Verify checks signature, algorithm and expiry. Expiry is reported as
// ErrTokenExpired, everything else as ErrTokenInvalid.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	var claims Claims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, ErrWrongKind
	}
	return &claims, nil
}

func (c *TokenCodec) VerifyKind(token string, kind Kind) (*Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
