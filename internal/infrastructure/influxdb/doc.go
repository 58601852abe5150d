// Package influxdb writes taskledger authentication telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: a ping on connect,
// the non-blocking batched write API, and an error callback for failed
// background flushes.
//
// # Measurements
//
//   - auth_attempts: tags action (signup, login) and outcome
//     (success, invalid_credentials, conflict, error); field count=1
//   - password_hash: tag algorithm; field duration_ms
//
// No usernames, passwords or tokens are ever written.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteAuthAttempt("login", "success")
package influxdb
