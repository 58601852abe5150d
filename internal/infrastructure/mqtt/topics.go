package mqtt

import "fmt"

// Topic prefixes for the taskledger MQTT namespace.
const (
	// TopicPrefix is the root of every taskledger topic.
	TopicPrefix = "taskledger"

	// TopicPrefixEvents is the base for domain event topics.
	TopicPrefixEvents = "taskledger/events"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "taskledger/system"
)

// Topics provides builders for taskledger MQTT topics.
//
//	topic := mqtt.Topics{}.Event("task", "create")
//	// Returns: "taskledger/events/task/create"
type Topics struct{}

// Event returns the topic for a domain event.
//
// Example: taskledger/events/account/login
func (Topics) Event(entity, action string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvents, entity, action)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: taskledger/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEvents returns a pattern matching every domain event, for consumers.
//
// Pattern: taskledger/events/#
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/#", TopicPrefixEvents)
}

// AllEntityEvents returns a pattern matching every action on one entity.
//
// Pattern: taskledger/events/task/+
func (Topics) AllEntityEvents(entity string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixEvents, entity)
}
