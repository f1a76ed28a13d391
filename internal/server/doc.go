// Package server implements the mlra HTTP API.
//
// # Routes
//
//	GET    /health
//	GET    /api/settings
//	GET    /api/settings/defaults
//	GET    /api/settings/events          SSE, event "settings"
//	PUT    /api/settings                 full replacement, validated
//	PATCH  /api/settings                 per-field merge, validated
//	POST   /api/settings/reset
//	POST   /api/papers                   multipart "file" (+ "title") or JSON {url,title}
//	GET    /api/documents?limit=N
//	GET    /api/experiments/{task_id}/result
//	GET    /api/reports/{task_id}?save=true
//	GET    {metrics.path}
//
// Mutating routes require a bearer token when a verifier is configured.
// Backend failures are reported as 502 with {"error": detail}.
//
// # Listeners
//
// Run listens on server.http_addr, or joins the tailnet through tsnet when
// tailscale.enabled is set (HTTPS on :443, or Funnel when tailscale.funnel).
package server
