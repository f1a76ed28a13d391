// Package mcp exposes mlra operations to AI clients over the Model Context
// Protocol.
//
// # Protocol
//
// JSON-RPC 2.0 over the Streamable HTTP transport, all on one path:
//
//   - POST /mcp - initialize, tools/list, tools/call, notifications
//   - DELETE /mcp - end a session (Mcp-Session-Id header)
//
// initialize returns an Mcp-Session-Id header that every later request must
// carry.
//
// # Authentication
//
// When a TokenVerifier is configured, a bearer token presented on initialize
// must verify and binds the session to its subject:
//
//	Authorization: Bearer <token>
//
// Sessions opened without a token may list tools and call the read-only
// ones. Tools marked Mutates need an authenticated session.
//
// # Tool Execution
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "get_settings",
//	    "arguments": {"path": "experiment.randomSeed"}
//	  },
//	  "id": 2
//	}
//
// Handler errors come back as an isError result; bad arguments, timeouts
// and cancellation are JSON-RPC errors.
package mcp
