package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the JWT payload: sub carries the account ID.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenCodec issues and verifies HS256 session tokens.
// Tokens are stateless: nothing is stored server-side, and rotating the
// secret invalidates every outstanding token.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec from settings. It fails when the secret is empty.
func NewTokenCodec(s Settings) (*TokenCodec, error) {
	if len(s.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	secret := make([]byte, len(s.Secret))
	copy(secret, s.Secret)

	return &TokenCodec{
		secret: secret,
		ttl:    s.TokenTTL,
		now:    time.Now,
	}, nil
}

// TTL returns the configured token lifetime; zero means unbounded.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token carrying id. When a TTL is configured the token gets
// an exp claim; otherwise it is valid until the secret changes.
func (c *TokenCodec) Issue(id Identity) (string, error) {
	if id.AccountID == "" {
		return "", fmt.Errorf("%w: missing account id", ErrInvalidToken)
	}

	now := c.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.AccountID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Username: id.Username,
	}
	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and (when present) expiry of
// token and returns the identity it carries. Every failure wraps
// ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Username == "" {
		return Identity{}, fmt.Errorf("%w: missing username", ErrInvalidToken)
	}

	return Identity{AccountID: claims.Subject, Username: claims.Username}, nil
}
