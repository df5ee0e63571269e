// Package sqlite provides the embedded SQLite implementation of the Card Store
// interfaces defined in internal/store, built on the pure-Go modernc.org/sqlite
// driver. Timestamps are stored as UTC unix nanoseconds and UUIDs as text.
package sqlite
