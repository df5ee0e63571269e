// Package domain contains the core entities of the memory-card scheduler:
// decks, cards with their review state, ratings and review logs.
// It is independent of any storage engine or transport.
package domain
