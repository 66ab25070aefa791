// Package server wires the scheduling components together for the
// serve and chat commands: the token store, the calendar access layer,
// the scheduling engine, the tool registry, and the orchestration
// loop, plus the dedicated metrics listener.
package server
