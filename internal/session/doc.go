// Package session drives one review pass over a learner's due cards.
//
// A Controller fetches the due queue, shows one card at a time, applies the
// scheduler when the learner rates a card and hands the rating to a Submitter
// on a single background worker, so writes land in the order they were made
// without holding up the next card. Callers read everything through Snapshot.
//
// The controller never talks to a database or the network directly: the due
// queue comes from a Fetcher and ratings go to a Submitter. internal/client
// provides both over HTTP.
package session
