// Package events carries taskledger domain events from the HTTP handlers to
// their sinks: the MQTT bus and the per-account WebSocket feed.
//
// Delivery is best-effort. A sink that fails logs and moves on; it never
// fails the request that produced the event.
package events
