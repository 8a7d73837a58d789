// Package clock provides a Lamport logical clock for stamping messages.
// The clock captures happened-before relationships between events observed
// at a single process; it is used for bookkeeping only and never gates the
// order in which messages are delivered.
package clock
