// Package tools declares the callable scheduling operations: their
// machine-readable schemas and their handlers. The registry is the
// single dispatch point for both the orchestration loop and the MCP
// server surface; a handler failure is always converted to a
// structured result, never propagated as an error.
package tools
