// Package logging provides shared structured-logging helpers built on
// log/slog.
//
// It defines the canonical attribute keys used across the codebase
// (operation, tool, user_hash, status, error) so that log output stays
// uniform and greppable, plus helpers that keep personally identifiable
// information out of logs: user identifiers are hashed before logging.
package logging
