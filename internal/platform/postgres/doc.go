// Package postgres provides PostgreSQL implementations of the Card Store
// interfaces defined in the internal/store package. It handles query
// execution, row locking for review transactions, and mapping between domain
// entities and database records.
package postgres
