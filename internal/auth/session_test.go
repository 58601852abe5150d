package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*SessionResolver, *TokenCodec) {
	t.Helper()
	codec := newTestCodec(t, time.Hour)
	return NewSessionResolver(testSettings(), codec), codec
}

func TestSessionResolver_Resolve(t *testing.T) {
	resolver, codec := newTestResolver(t)
	want := Identity{AccountID: "usr-001", Username: "alice"}

	token, err := codec.Issue(want)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})

	got, err := resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSessionResolver_Failures(t *testing.T) {
	resolver, codec := newTestResolver(t)
	valid, err := codec.Issue(Identity{AccountID: "usr-001", Username: "alice"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"empty cookie", &http.Cookie{Name: "token", Value: ""}},
		{"wrong cookie name", &http.Cookie{Name: "session", Value: valid}},
		{"tampered token", &http.Cookie{Name: "token", Value: valid + "x"}},
		{"garbage", &http.Cookie{Name: "token", Value: "not.a.jwt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			_, err := resolver.Resolve(req)
			assert.ErrorIs(t, err, ErrUnauthenticated)
			assert.True(t, IsAuthError(err))
		})
	}
}

func TestSessionResolver_TamperedTokenWrapsInvalidToken(t *testing.T) {
	resolver, _ := newTestResolver(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "a.b.c"})

	_, err := resolver.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionResolver_Cookies(t *testing.T) {
	resolver, _ := newTestResolver(t)

	issued := resolver.IssueCookie("tok")
	assert.Equal(t, "token", issued.Name)
	assert.Equal(t, "tok", issued.Value)
	assert.True(t, issued.HttpOnly)
	assert.Equal(t, "/", issued.Path)
	assert.Equal(t, http.SameSiteLaxMode, issued.SameSite)
	assert.Equal(t, 3600, issued.MaxAge)
	assert.False(t, issued.Secure)

	cleared := resolver.ClearCookie()
	assert.Equal(t, "token", cleared.Name)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
	assert.True(t, cleared.HttpOnly)
}

func TestSessionResolver_SessionCookieWithoutTTL(t *testing.T) {
	s := testSettings()
	s.TokenTTL = 0
	s.SecureCookie = true
	s.CookieName = "tl_session"
	codec, err := NewTokenCodec(s)
	require.NoError(t, err)
	resolver := NewSessionResolver(s, codec)

	c := resolver.IssueCookie("tok")
	assert.Equal(t, "tl_session", c.Name)
	assert.Zero(t, c.MaxAge, "no TTL means a browser-session cookie")
	assert.True(t, c.Secure)
	assert.Equal(t, "tl_session", resolver.CookieName())
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	id := Identity{AccountID: "usr-001", Username: "alice"}
	got, ok := IdentityFromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = IdentityFromContext(WithIdentity(context.Background(), Identity{}))
	assert.False(t, ok, "zero identity is not an identity")
}
