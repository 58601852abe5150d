package events

import (
	"context"
	"time"
)

// Entities that emit events.
const (
	EntityAccount = "account"
	EntityTask    = "task"
)

// Actions an event can describe.
const (
	ActionSignup = "signup"
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is a single domain occurrence. Details must never hold passwords,
// hashes or tokens.
type Event struct {
	Type       string         `json:"type"`
	Entity     string         `json:"-"`
	Action     string         `json:"-"`
	AccountID  string         `json:"account_id"`
	EntityID   string         `json:"entity_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Details    map[string]any `json:"details,omitempty"`
}

// New builds an event stamped with the current time. Type is
// "{entity}.{action}".
func New(entity, action, accountID, entityID string, details map[string]any) Event {
	return Event{
		Type:       entity + "." + action,
		Entity:     entity,
		Action:     action,
		AccountID:  accountID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Details:    details,
	}
}

// Publisher delivers events to a sink. Implementations must not block the
// caller for long and must not return delivery failures.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event. Used when no sink is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}
