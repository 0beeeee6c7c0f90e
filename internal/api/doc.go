// Package api serves the read-only status API.
//
// Endpoints:
//   - GET /api/v1/health: component health, 503 when any check fails
//   - GET /api/v1/schedule: scheduler state and queued events in firing order
//   - GET /api/v1/anchors: current solar anchors
//   - GET /api/v1/firings: firing history (?camera=N&limit=N&offset=N&since=RFC3339)
//   - GET /api/v1/system: runtime statistics
//   - GET /metrics: Prometheus exposition
//
// Nothing in the API changes the schedule. The server binds to 127.0.0.1
// by default and is not started in dry-run or immediate mode.
package api
