// Package interval provides pure time-interval overlap arithmetic.
//
// Every comparison operates on absolute instants (time.Time values that
// carry their own location), never on naive wall-clock strings. Callers
// are responsible for resolving a date + time-of-day + timezone into
// instants before calling into this package.
package interval
