package domain

import (
	"fmt"
	"strings"
)

// Rating is the learner's self-assessed recall quality for a single review.
type Rating string

// The closed set of ratings, from worst to best recall.
const (
	RatingAgain Rating = "again"
	RatingHard  Rating = "hard"
	RatingGood  Rating = "good"
	RatingEasy  Rating = "easy"
)

// Ratings returns every valid rating ordered from worst to best recall.
func Ratings() []Rating {
	return []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}
}

// IsValid reports whether r is one of the four known ratings.
func (r Rating) IsValid() bool {
	switch r {
	case RatingAgain, RatingHard, RatingGood, RatingEasy:
		return true
	default:
		return false
	}
}

// IsCorrect reports whether the rating counts as a successful recall.
// Only again counts as a failure.
func (r Rating) IsCorrect() bool {
	return r.IsValid() && r != RatingAgain
}

func (r Rating) String() string {
	return string(r)
}

// ParseRating converts s (case-insensitive, surrounding spaces ignored) into a Rating.
func ParseRating(s string) (Rating, error) {
	r := Rating(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}
