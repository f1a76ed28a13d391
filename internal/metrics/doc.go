// ABOUTME: Package documentation for metrics
// ABOUTME: Describes the collectors and how they are wired

// Package metrics exposes Prometheus collectors for mlra.
//
// A Metrics value owns its own registry. The server mounts Handler at the
// configured path, wraps the API mux with Middleware, and passes a
// SettingsObserver to the settings store so swallowed persistence failures
// remain visible.
package metrics
