// Package token issues and redeems signed, expiring intent tokens.
//
// A token is an HS256 JWT whose claims are the caller's payload plus the
// iat, nbf, exp and jti registered claims. Tokens are opaque to everyone but
// the Codec that issued them.
package token

import (
	"encoding/json"
	"errors"
	"maps"
	"time"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"
)

// DefaultTTL is used when Issue is called with a non-positive ttl.
const DefaultTTL = time.Hour

const (
	claimIssuedAt  = "iat"
	claimNotBefore = "nbf"
	claimExpiresAt = "exp"
	claimID        = "jti"
)

var signingMethod = jwt.SigningMethodHS256

// Codec signs and verifies tokens with a shared secret.
type Codec struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefaultTTL sets the lifetime used when Issue gets a non-positive ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// NewCodec constructs a Codec signing with secret.
func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{
		secret:     secret,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs payload together with issued-at, not-before and expiry claims.
func (c *Codec) Issue(payload map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	claims := make(jwt.MapClaims, len(payload)+4)
	maps.Copy(claims, payload)
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimNotBefore] = jwt.NewNumericDate(now)
	claims[claimExpiresAt] = jwt.NewNumericDate(now.Add(ttl))
	if _, ok := claims[claimID]; !ok {
		claims[claimID] = ksuid.New().String()
	}

	return jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
}

// Redeem verifies tokenString and returns its claims.
//
// Integral numbers are returned as int64, other numbers as float64.
func (c *Codec) Redeem(tokenString string) (map[string]any, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(c.now),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	out := make(map[string]any, len(claims))
	for key, value := range claims {
		out[key] = normalize(value)
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return autherr.Wrap(autherr.TokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return autherr.Wrap(autherr.TokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return autherr.Wrap(autherr.TokenExpired, err)
	default:
		return autherr.Wrap(autherr.TokenInvalid, err)
	}
}

func normalize(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = normalize(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = normalize(inner)
		}
		return out
	default:
		return value
	}
}
