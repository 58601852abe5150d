// Package api implements the taskledger HTTP API and WebSocket feed.
//
// This package provides:
//   - Cookie-session auth endpoints (signup, login, logout)
//   - Owner-scoped task endpoints and account endpoints
//   - The caller's own audit trail
//   - A WebSocket feed of the caller's own task events
//   - Middleware stack (request ID, logging, recovery, metrics, CORS, auth)
//
// # Security
//
// Every protected route resolves the session cookie in authMiddleware before
// the handler runs. Handlers never take an owner id from the request: the
// task and account services read the identity from the context. A task that
// exists but belongs to someone else is reported exactly like a missing one.
//
// # Graceful Degradation
//
// MQTT events, InfluxDB telemetry and the audit trail are optional. When a
// sink is absent or failing, requests still succeed.
package api
