// Package schedule implements conflict detection for proposed events
// and free-slot search with day-by-day escalation. It works on busy
// blocks from the calendar package and treats all spans as half-open
// intervals, so back-to-back events never conflict.
package schedule
