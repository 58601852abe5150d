package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SessionResolver turns the session cookie of a request into an Identity.
// It has no side effects.
type SessionResolver struct {
	codec      *TokenCodec
	cookieName string
	secure     bool
}

// NewSessionResolver creates a resolver that reads the cookie named in s.
func NewSessionResolver(s Settings, codec *TokenCodec) *SessionResolver {
	s = s.withDefaults()
	return &SessionResolver{
		codec:      codec,
		cookieName: s.CookieName,
		secure:     s.SecureCookie,
	}
}

// CookieName returns the session cookie name.
func (r *SessionResolver) CookieName() string {
	return r.cookieName
}

// Resolve reads and verifies the session cookie. A missing cookie or any
// verification failure returns an error wrapping ErrUnauthenticated.
func (r *SessionResolver) Resolve(req *http.Request) (Identity, error) {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}, fmt.Errorf("%w: no session cookie", ErrUnauthenticated)
	}

	id, err := r.codec.Verify(cookie.Value)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return id, nil
}

// IssueCookie wraps token in an HttpOnly session cookie whose lifetime
// matches the token TTL. With no TTL it is a browser-session cookie.
func (r *SessionResolver) IssueCookie(token string) *http.Cookie {
	c := &http.Cookie{
		Name:     r.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := r.codec.TTL(); ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}

// ClearCookie returns a cookie that makes the browser drop the session.
func (r *SessionResolver) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     r.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.IsZero() {
		return Identity{}, false
	}
	return id, true
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidToken)
}
