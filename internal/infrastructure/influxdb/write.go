package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementAuthAttempts = "auth_attempts"
	measurementPasswordHash = "password_hash"
)

// WriteAuthAttempt records one signup or login outcome.
//
// This is the primary telemetry write for the auth endpoints.
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - action: The endpoint that was attempted ("signup", "login")
//   - outcome: success, invalid_credentials, conflict, invalid_request or error
//
// Example:
//
//	client.WriteAuthAttempt("login", "invalid_credentials")
func (c *Client) WriteAuthAttempt(action, outcome string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(authAttemptPoint(action, outcome, time.Now()))
}

// WritePasswordHash records how long one password hash took.
//
// Used for tracking hashing cost as bcrypt cost or argon2 parameters change.
// Its signature matches auth.HashObserver.
//
// Parameters:
//   - algorithm: Hash algorithm tag ("bcrypt", "argon2id")
//   - d: Wall time of the hash, written as duration_ms
func (c *Client) WritePasswordHash(algorithm string, d time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(passwordHashPoint(algorithm, d, time.Now()))
}

func authAttemptPoint(action, outcome string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementAuthAttempts,
		map[string]string{
			"action":  action,
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)
}

func passwordHashPoint(algorithm string, d time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementPasswordHash,
		map[string]string{
			"algorithm": algorithm,
		},
		map[string]interface{}{
			"duration_ms": float64(d) / float64(time.Millisecond),
		},
		ts,
	)
}
