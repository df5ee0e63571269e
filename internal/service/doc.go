// Package service contains the deck and card management use cases. It
// coordinates the store interfaces (internal/store) with the scheduler
// (internal/domain/srs) and enforces ownership: a learner only sees and
// changes their own decks and cards.
//
// Review scheduling lives in the card_review subpackage; token verification
// lives in auth.
package service
