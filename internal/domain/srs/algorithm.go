package srs

import (
	"math"
	"time"

	"github.com/phrazzld/memory-cards/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor based on the rating.
//
// The ease factor represents how quickly intervals grow for a card: higher values
// mean the card is easier. The adjustment for the rating comes from params.
//
// Parameters:
//   - currentEF: The current ease factor of the card, typically between 1.3 and 2.5
//   - rating: The learner's rating (again, hard, good, easy)
//   - params: Configuration parameters for the scheduling algorithm
//
// Returns:
//   - The new ease factor, rounded to two decimals and clamped between
//     params.MinEaseFactor and params.MaxEaseFactor
func calculateNewEaseFactor(currentEF float64, rating domain.Rating, params *Params) float64 {
	newEF := currentEF + params.EaseFactorAdjustment[rating]

	// Two decimals keep repeated adjustments from drifting (2.5 - 0.15 == 2.35, not 2.3499...)
	newEF = math.Round(newEF*100) / 100

	return clampEaseFactor(newEF, params)
}

func clampEaseFactor(ef float64, params *Params) float64 {
	if ef < params.MinEaseFactor {
		return params.MinEaseFactor
	}
	if ef > params.MaxEaseFactor {
		return params.MaxEaseFactor
	}
	return ef
}

// calculateNewInterval determines the spacing until the next review.
//
// Parameters:
//   - state: The review state before the rating is applied
//   - newEF: The ease factor after the rating is applied
//   - rating: The learner's rating
//   - params: Configuration parameters for the scheduling algorithm
//
// Algorithm behavior:
//   - again: always params.AgainInterval
//   - First review (RepetitionCount == 0) or relearning after a lapse
//     (ConsecutiveCorrect == 0): the fixed params.FirstReviewIntervals entry
//   - hard: previous interval times the hard modifier, ignoring ease
//   - good: previous interval times the new ease factor
//   - easy: previous interval times the new ease factor and the easy bonus
//
// The result is rounded to whole seconds and never exceeds the rating's
// ceiling (see intervalCeiling), so the order holds even at the cap.
func calculateNewInterval(
	state domain.ReviewState,
	newEF float64,
	rating domain.Rating,
	params *Params,
) time.Duration {
	if rating == domain.RatingAgain {
		return params.AgainInterval
	}

	if state.RepetitionCount == 0 || state.ConsecutiveCorrect == 0 {
		return capInterval(params.FirstReviewIntervals[rating], rating, params)
	}

	modifier := params.IntervalModifier[rating]
	if rating != domain.RatingHard {
		modifier *= newEF
	}

	return scaleInterval(state.Interval, modifier, rating, params)
}

// ceilingStep separates the per-rating ceilings below params.MaxInterval.
const ceilingStep = time.Second

// intervalCeiling is the longest interval a rating may produce: easy reaches
// params.MaxInterval, good stops one step below and hard two steps below.
func intervalCeiling(rating domain.Rating, params *Params) time.Duration {
	switch rating {
	case domain.RatingHard:
		return params.MaxInterval - 2*ceilingStep
	case domain.RatingGood:
		return params.MaxInterval - ceilingStep
	default:
		return params.MaxInterval
	}
}

// scaleInterval multiplies base by factor in float seconds so that very long
// intervals cannot overflow time.Duration before the ceiling applies.
func scaleInterval(base time.Duration, factor float64, rating domain.Rating, params *Params) time.Duration {
	ceiling := intervalCeiling(rating, params)
	seconds := math.Round(base.Seconds() * factor)
	if seconds >= ceiling.Seconds() {
		return ceiling
	}
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func capInterval(interval time.Duration, rating domain.Rating, params *Params) time.Duration {
	if ceiling := intervalCeiling(rating, params); interval > ceiling {
		return ceiling
	}
	return interval.Round(time.Second)
}

// calculateNextCard returns a new card carrying the state after rating is
// applied at now. The input card is never modified.
//
// Algorithm behavior:
//   - Increments RepetitionCount and exactly one of CorrectCount / IncorrectCount
//   - Resets the streak on again, extends it otherwise
//   - Sets LastReviewedAt and UpdatedAt to now
//   - NextReviewAt is now plus the new interval, so it is never before LastReviewedAt
func calculateNextCard(card *domain.Card, rating domain.Rating, now time.Time, params *Params) *domain.Card {
	prev := card.ReviewState
	next := card.Clone()

	next.RepetitionCount = prev.RepetitionCount + 1
	next.LastReviewedAt = now
	next.UpdatedAt = now

	next.EaseFactor = calculateNewEaseFactor(prev.EaseFactor, rating, params)

	if rating == domain.RatingAgain {
		next.IncorrectCount = prev.IncorrectCount + 1
		next.ConsecutiveCorrect = 0
	} else {
		next.CorrectCount = prev.CorrectCount + 1
		next.ConsecutiveCorrect = prev.ConsecutiveCorrect + 1
	}

	next.Interval = calculateNewInterval(prev, next.EaseFactor, rating, params)
	next.NextReviewAt = now.Add(next.Interval)

	return next
}

// initialEaseFactor seeds the ease factor from the fixed difficulty level:
// harder cards start with slower growth.
func initialEaseFactor(difficultyLevel int, params *Params) float64 {
	level := difficultyLevel
	if level < domain.MinDifficultyLevel {
		level = domain.MinDifficultyLevel
	}
	if level > domain.MaxDifficultyLevel {
		level = domain.MaxDifficultyLevel
	}

	ef := params.DefaultEaseFactor - float64(level-1)*params.DifficultyEaseStep
	return clampEaseFactor(math.Round(ef*100)/100, params)
}
