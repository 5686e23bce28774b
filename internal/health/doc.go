// Package health serves the ingester's /health endpoint.
//
// The response reports overall status and one entry per component:
//   - healthy: every check passed
//   - degraded: a non-critical check failed
//   - unhealthy: a critical check failed (HTTP 503)
package health
