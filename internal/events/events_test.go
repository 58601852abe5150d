package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/taskledger/internal/infrastructure/config"
	"github.com/nerrad567/taskledger/internal/infrastructure/logging"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (b *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{topic, payload, qos, retained})
	return b.err
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestNew(t *testing.T) {
	e := New(EntityTask, ActionCreate, "usr-alice", "tsk-1", map[string]any{"task_name": "buy milk"})

	assert.Equal(t, "task.create", e.Type)
	assert.Equal(t, "usr-alice", e.AccountID)
	assert.Equal(t, "tsk-1", e.EntityID)
	assert.False(t, e.OccurredAt.IsZero())
	assert.Equal(t, "UTC", e.OccurredAt.Location().String())
}

func TestMQTTPublisher_Publish(t *testing.T) {
	broker := &fakeBroker{}
	p := NewMQTTPublisher(broker, 1, nil)
	p.Start()

	p.Publish(context.Background(), New(EntityAccount, ActionLogin, "usr-alice", "usr-alice", nil))
	p.Close()

	require.Len(t, broker.msgs, 1)
	msg := broker.msgs[0]
	assert.Equal(t, "taskledger/events/account/login", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained, "events are never retained")

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, "account.login", body["type"])
	assert.Equal(t, "usr-alice", body["account_id"])
	assert.Contains(t, body, "occurred_at")
	assert.NotContains(t, body, "details", "empty details are omitted")
	assert.NotContains(t, body, "Entity")
}

func TestMQTTPublisher_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "info"}, "test", &buf)
	broker := &fakeBroker{err: errors.New("mqtt: client not connected")}

	p := NewMQTTPublisher(broker, 0, logger)
	p.Start()
	p.Publish(context.Background(), New(EntityTask, ActionDelete, "usr-alice", "tsk-1", nil))
	p.Close()

	assert.Contains(t, buf.String(), "publishing event failed")
	assert.Contains(t, buf.String(), "taskledger/events/task/delete")
}

// blockingBroker holds every publish until release is closed.
type blockingBroker struct {
	fakeBroker
	release chan struct{}
}

func (b *blockingBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	<-b.release
	return b.fakeBroker.Publish(topic, payload, qos, retained)
}

func TestMQTTPublisher_SlowBrokerDoesNotBlockCaller(t *testing.T) {
	broker := &blockingBroker{release: make(chan struct{})}
	p := NewMQTTPublisher(broker, 1, nil)
	p.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Publish(context.Background(), New(EntityTask, ActionCreate, "usr-alice", "tsk-1", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow broker")
	}

	close(broker.release)
	p.Close()
	assert.Len(t, broker.msgs, 10, "queued events are delivered before Close returns")
}

func TestMQTTPublisher_DropsWhenQueueFull(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "info"}, "test", &buf)
	broker := &fakeBroker{}

	// Not started, so nothing drains the queue.
	p := NewMQTTPublisher(broker, 0, logger)
	for i := 0; i < DefaultQueueSize+1; i++ {
		p.Publish(context.Background(), New(EntityTask, ActionCreate, "usr-alice", "tsk-1", nil))
	}
	assert.Len(t, p.queue, DefaultQueueSize)
	assert.Contains(t, buf.String(), "event queue full")

	p.Start()
	p.Close()
	assert.Len(t, broker.msgs, DefaultQueueSize)
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := Fanout{a, nil, Nop{}, b}

	f.Publish(context.Background(), New(EntityTask, ActionUpdate, "usr-bob", "tsk-9", nil))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "task.update", b.events[0].Type)
}
