// Package calendar provides access to a user's Google Calendar with a
// read-through cache, per-user rate limiting, and a stable error taxonomy.
//
// The Service is the entry point: it resolves a provider client per user,
// serves event reads from an in-memory TTL cache, and invalidates every
// cached range for a user whenever that user's calendar is mutated.
package calendar
