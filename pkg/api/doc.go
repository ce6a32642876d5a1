// Package api implements the HTTP transport (spec §4.8): a single JSON-RPC
// endpoint at /mcp plus unauthenticated /health and /status endpoints for
// operational monitoring.
package api
