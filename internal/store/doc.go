// Package store defines the Card Store contract: interfaces for deck, card and
// review-log persistence plus transaction handling. Business rules depend only
// on these interfaces; internal/platform/postgres and internal/platform/sqlite
// provide the implementations.
package store
