// Package mqtt provides the MQTT broker connection taskledger uses to
// announce domain events.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload size checks
//   - Last Will and Testament on taskledger/system/status
//
// The server only publishes. Downstream consumers subscribe to
// Topics.AllEvents() or a single entity's events:
//
//	taskledger/events/{entity}/{action}
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if errors.Is(err, mqtt.ErrDisabled) {
//	    // fall back to a no-op publisher
//	}
//	defer client.Close()
//
//	err = client.Publish(mqtt.Topics{}.Event("task", "create"), payload, client.QoS(), false)
//
// # Security Considerations
//
//   - Enable cfg.Broker.TLS outside local development
//   - Payloads never carry passwords, hashes or session tokens
package mqtt
