package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/taskledger/internal/audit"
	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/events"
	"github.com/nerrad567/taskledger/internal/infrastructure/config"
	"github.com/nerrad567/taskledger/internal/infrastructure/database"
	"github.com/nerrad567/taskledger/internal/infrastructure/logging"
	"github.com/nerrad567/taskledger/internal/task"
	_ "github.com/nerrad567/taskledger/migrations" // registers the schema
)

const testPassword = "correct horse battery staple"

// recordingPublisher captures every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingTelemetry captures auth attempts.
type recordingTelemetry struct {
	mu       sync.Mutex
	attempts []string
}

func (r *recordingTelemetry) WriteAuthAttempt(action, outcome string) {
	r.mu.Lock()
	r.attempts = append(r.attempts, action+":"+outcome)
	r.mu.Unlock()
}

func (r *recordingTelemetry) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.attempts...)
}

// testEnv is a running API over a fresh migrated database.
type testEnv struct {
	srv       *Server
	ts        *httptest.Server
	db        *database.DB
	events    *recordingPublisher
	telemetry *recordingTelemetry
}

func testSettings() auth.Settings {
	return auth.Settings{
		Secret:              []byte("test-secret-key-at-least-32-characters-long"),
		TokenTTL:            time.Hour,
		CookieName:          auth.DefaultCookieName,
		PasswordAlgorithm:   config.PasswordAlgorithmBcrypt,
		BcryptCost:          bcrypt.MinCost,
		MaxConcurrentHashes: 4,
	}
}

// testServer builds a Server with real services; workers are not started.
func testServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(context.Background()))

	settings := testSettings()
	codec, err := auth.NewTokenCodec(settings)
	require.NoError(t, err)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:    logging.Discard(),
		DB:        db,
		Auth:      auth.NewService(auth.NewAccountRepository(db.DB), auth.NewCredentialManager(settings), codec),
		Tasks:     task.NewService(task.NewSQLiteRepository(db.DB)),
		Sessions:  auth.NewSessionResolver(settings, codec),
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		Version:   "test",
	})
	require.NoError(t, err)
	return srv, db
}

// newTestEnv starts the server's workers behind an httptest listener.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv, db := testServer(t)
	env := &testEnv{
		srv:       srv,
		db:        db,
		events:    &recordingPublisher{},
		telemetry: &recordingTelemetry{},
	}
	srv.events = events.Fanout{env.events, srv.hub}
	srv.telemetry = env.telemetry

	srv.startWorkers(context.Background())
	env.ts = httptest.NewServer(srv.buildRouter())
	t.Cleanup(func() {
		env.ts.Close()
		srv.Close() //nolint:errcheck // Test cleanup
	})
	return env
}

// apiClient is a browser-like client with its own cookie jar.
type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: e.ts.URL, http: &http.Client{Jar: jar}}
}

// do sends a JSON request and decodes the JSON response into a generic map.
func (c *apiClient) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close() //nolint:errcheck // Test cleanup

	var out map[string]any
	//nolint:errcheck // non-JSON bodies leave out nil
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// signupAndLogin creates username and returns a logged-in client.
func (e *testEnv) signupAndLogin(t *testing.T, username string) *apiClient {
	t.Helper()
	c := e.client(t)

	resp, _ := c.do(http.MethodPost, "/auth/signup", credentialsRequest{Username: username, Password: testPassword})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/auth/login", credentialsRequest{Username: username, Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return c
}

// createTask creates a task and returns its id.
func (c *apiClient) createTask(name string) string {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/tasks/", createTaskRequest{Name: name})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	created, ok := body["task"].(map[string]any)
	require.True(c.t, ok, "response has task object")
	return created["task_id"].(string)
}

// taskNames lists the caller's tasks at path and returns their names.
func (c *apiClient) taskNames(path string) []string {
	c.t.Helper()
	resp, body := c.do(http.MethodGet, path, nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	list, _ := body["tasks"].([]any)
	names := make([]string, 0, len(list))
	for _, item := range list {
		names = append(names, item.(map[string]any)["task_name"].(string))
	}
	return names
}

// whoami returns the caller's account id.
func (c *apiClient) whoami() string {
	c.t.Helper()
	resp, body := c.do(http.MethodGet, "/users/current", nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	return body["user_id"].(string)
}
