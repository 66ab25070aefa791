// Package cmd implements the command-line interface for chatplan.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing calendar and scheduling tools
//   - chat: Run a single scheduling-assistant conversation turn from the CLI
//   - auth: Link a Google account (print the consent URL, exchange the code)
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
package cmd
