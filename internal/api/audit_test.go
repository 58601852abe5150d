package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/taskledger/internal/audit"
)

// auditActions polls the caller's audit log until it holds want entries.
func auditActions(t *testing.T, c *apiClient, query string, want int) []string {
	t.Helper()

	var actions []string
	require.Eventually(t, func() bool {
		resp, body := c.do(http.MethodGet, "/audit/"+query, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return false
		}
		var result audit.ListResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return false
		}
		actions = actions[:0]
		for _, e := range result.Logs {
			actions = append(actions, e.Action+":"+e.EntityType)
		}
		return len(actions) == want
	}, 2*time.Second, 20*time.Millisecond)
	return actions
}

func TestAuditLog_ScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signupAndLogin(t, "alice")
	bob := env.signupAndLogin(t, "bob")

	alice.createTask("alice only")
	bob.createTask("bob only")

	aliceActions := auditActions(t, alice, "", 3)
	assert.ElementsMatch(t, []string{"signup:account", "login:account", "create:task"}, aliceActions)

	bobActions := auditActions(t, bob, "", 3)
	assert.ElementsMatch(t, []string{"signup:account", "login:account", "create:task"}, bobActions)
}

func TestAuditLog_Filters(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signupAndLogin(t, "alice")

	id := alice.createTask("one")
	alice.do(http.MethodPut, "/tasks/", updateTaskRequest{ID: id, Name: "one", IsComplete: true})
	alice.do(http.MethodDelete, "/tasks/", deleteTaskRequest{Name: "one"})

	assert.Equal(t, []string{"delete:task", "update:task", "create:task"},
		auditActions(t, alice, "?entity_type=task", 3), "newest first")
	assert.Equal(t, []string{"update:task"}, auditActions(t, alice, "?action=update", 1))
	assert.Len(t, auditActions(t, alice, "?limit=2", 2), 2)
}

func TestAuditLog_WritesNoSecrets(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signupAndLogin(t, "alice")
	alice.do(http.MethodPut, "/users/update", updateUserRequest{Password: "another-password-1"})

	auditActions(t, alice, "", 3)

	var leaked int
	require.NoError(t, env.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM audit_logs WHERE details LIKE ? OR details LIKE ?",
		"%"+testPassword+"%", "%another-password-1%").Scan(&leaked))
	assert.Zero(t, leaked)
}

func TestAuditLog_DropsWhenQueueFull(t *testing.T) {
	srv, _ := testServer(t)
	// Workers are not running, so nothing drains the queue.
	for i := 0; i < auditChanSize; i++ {
		srv.auditLog(audit.ActionCreate, audit.EntityTask, "t", "u", nil)
	}

	done := make(chan struct{})
	go func() {
		srv.auditLog(audit.ActionCreate, audit.EntityTask, "t", "u", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auditLog blocked on a full queue")
	}
	assert.Len(t, srv.auditCh, auditChanSize)
}
