package api

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/taskledger/internal/auth"
)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: "alice", Password: testPassword})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, msgSignupOK, body["message"])
	assert.Empty(t, resp.Cookies(), "signup does not log in")

	t.Run("duplicate username", func(t *testing.T) {
		resp, body := c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: "alice", Password: "another-password"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, ErrCodeConflict, body["code"])
	})

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name string
			req  credentialsRequest
		}{
			{"empty username", credentialsRequest{Username: "", Password: testPassword}},
			{"bad characters", credentialsRequest{Username: "al ice", Password: testPassword}},
			{"empty password", credentialsRequest{Username: "carol", Password: ""}},
			{"password too long", credentialsRequest{Username: "carol", Password: strings.Repeat("p", 73)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, body := c.do(http.MethodPost, "/auth/signup", tt.req)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
				assert.Equal(t, ErrCodeValidation, body["code"])
			})
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		resp, err := http.Post(env.ts.URL+"/auth/signup", "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck // Test cleanup
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, _ := c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: "alice", Password: testPassword})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/auth/login", credentialsRequest{Username: "alice", Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msgLoginOK, body["message"])

	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.DefaultCookieName {
			session = ck
		}
	}
	require.NotNil(t, session, "login sets the session cookie")
	assert.True(t, session.HttpOnly)
	assert.Equal(t, "/", session.Path)
	assert.NotEmpty(t, session.Value)

	// The cookie alone authenticates subsequent requests.
	assert.NotEmpty(t, c.whoami())
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.signupAndLogin(t, "alice")

	c := env.client(t)
	wrongResp, wrongBody := c.do(http.MethodPost, "/auth/login", credentialsRequest{Username: "alice", Password: "not-the-password"})
	unknownResp, unknownBody := c.do(http.MethodPost, "/auth/login", credentialsRequest{Username: "nobody", Password: testPassword})

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownResp.StatusCode)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Equal(t, msgLoginFailed, wrongBody["message"])

	assert.Empty(t, wrongResp.Cookies(), "failed login must not set a cookie")
	assert.Empty(t, unknownResp.Cookies(), "failed login must not set a cookie")

	resp, _ := c.do(http.MethodGet, "/tasks/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.signupAndLogin(t, "alice")

	resp, body := c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msgLogoutOK, body["message"])

	var cleared bool
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.DefaultCookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout expires the session cookie")

	resp, _ = c.do(http.MethodGet, "/tasks/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	t.Run("without session", func(t *testing.T) {
		resp, _ := env.client(t).do(http.MethodPost, "/auth/logout", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t)
	anon := env.client(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/tasks/"},
		{http.MethodPost, "/tasks/"},
		{http.MethodPut, "/tasks/"},
		{http.MethodDelete, "/tasks/"},
		{http.MethodGet, "/tasks/done"},
		{http.MethodGet, "/tasks/some-id"},
		{http.MethodGet, "/users/"},
		{http.MethodGet, "/users/current"},
		{http.MethodPut, "/users/update"},
		{http.MethodDelete, "/users/some-id"},
		{http.MethodGet, "/audit/"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			resp, body := anon.do(rt.method, rt.path, map[string]any{"task_name": "x"})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, ErrCodeUnauthorized, body["code"])
		})
	}
}

func TestProtectedRoutes_RejectTamperedToken(t *testing.T) {
	env := newTestEnv(t)
	c := env.signupAndLogin(t, "alice")

	base, err := url.Parse(env.ts.URL)
	require.NoError(t, err)

	var token string
	for _, ck := range c.http.Jar.Cookies(base) {
		if ck.Name == auth.DefaultCookieName {
			token = ck.Value
		}
	}
	require.NotEmpty(t, token)

	// Change one character inside the signature. The final character is
	// avoided because its low bits are base64 padding.
	i := len(token) - 10
	swapped := byte('A')
	if token[i] == 'A' {
		swapped = 'B'
	}
	tampered := token[:i] + string(swapped) + token[i+1:]

	tests := map[string]string{
		"tampered": tampered,
		"garbage":  "not.a.token",
		"empty":    "",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/tasks/", nil)
			require.NoError(t, err)
			req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: value})

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck // Test cleanup
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuthTelemetryOutcomes(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: "alice", Password: testPassword})
	c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: "alice", Password: testPassword})
	c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: "", Password: testPassword})
	c.do(http.MethodPost, "/auth/login", credentialsRequest{Username: "alice", Password: "wrong-password"})
	c.do(http.MethodPost, "/auth/login", credentialsRequest{Username: "alice", Password: testPassword})

	assert.Equal(t, []string{
		"signup:success",
		"signup:conflict",
		"signup:invalid_request",
		"login:invalid_credentials",
		"login:success",
	}, env.telemetry.all())
}

func TestAuthEvents_NeverCarrySecrets(t *testing.T) {
	env := newTestEnv(t)
	env.signupAndLogin(t, "alice")

	assert.Equal(t, []string{"account.signup", "account.login"}, env.events.types())

	env.events.mu.Lock()
	defer env.events.mu.Unlock()
	for _, e := range env.events.events {
		for k, v := range e.Details {
			assert.NotContains(t, k, "password")
			assert.NotEqual(t, testPassword, v)
		}
	}
}

func TestAuthOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, outcomeSuccess},
		{auth.ErrInvalidCredentials, outcomeInvalidCredentials},
		{auth.ErrUsernameExists, outcomeConflict},
		{auth.ErrInvalidUsername, outcomeInvalidRequest},
		{auth.ErrPasswordTooLong, outcomeInvalidRequest},
		{assert.AnError, outcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, authOutcome(tt.err))
	}
}
