// Package config handles configuration loading for mlra.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Values missing from the file keep the Default() values.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MLRA_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/mlra/config.yaml
//  3. ~/.config/mlra/config.yaml
//
// A missing file at locations 2 or 3 is not an error.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${MLRA_JWT_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  read_header_timeout: "10s"
//
//	storage:
//	  driver: "sqlite"            # sqlite, sqlite3 (cgo), file, memory
//	  path: "~/.local/share/mlra/mlra.db"
//	  settings_key: "mlra_settings_v1"
//
//	backend:
//	  base_url: "http://127.0.0.1:8000"  # MLRA_API_BASE_URL wins when set
//	  timeout: "30s"
//
//	ingest:
//	  dedupe_ttl: "24h"
//	  dedupe_max_entries: 1024
//
//	tailscale:
//	  enabled: false
//	  hostname: "mlra"
//	  auth_key: "${TS_AUTHKEY}"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
