package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/memory-cards/internal/domain"
)

// ErrInvalidParams is returned when a parameter set would break the ordering
// again < hard < good < easy or produce non-positive intervals.
var ErrInvalidParams = errors.New("invalid scheduler parameters")

// Day is the unit the first-review intervals and postponements are expressed in.
const Day = 24 * time.Hour

// Params defines all configurable parameters for the scheduling algorithm.
type Params struct {
	// Ease factor bounds and the seed for a brand-new card of difficulty 1.
	MinEaseFactor     float64
	MaxEaseFactor     float64
	DefaultEaseFactor float64

	// DifficultyEaseStep lowers the seed ease factor for every difficulty level above 1.
	DifficultyEaseStep float64

	// Per-rating adjustments. Again has no interval modifier: it always uses AgainInterval.
	EaseFactorAdjustment map[domain.Rating]float64
	IntervalModifier     map[domain.Rating]float64

	// Intervals used for the first successful review and after a lapse.
	FirstReviewIntervals map[domain.Rating]time.Duration
	AgainInterval        time.Duration

	// MaxInterval caps growth so intervals always fit in a time.Duration.
	// Only easy reaches it; good and hard stop one and two seconds short.
	MaxInterval time.Duration
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the default.
type ParamsConfig struct {
	MinEaseFactor float64
	MaxEaseFactor float64

	AgainEaseFactorAdjustment float64
	HardEaseFactorAdjustment  float64
	GoodEaseFactorAdjustment  float64
	EasyEaseFactorAdjustment  float64

	HardIntervalModifier float64
	GoodIntervalModifier float64
	EasyIntervalModifier float64

	FirstReviewHardDays int
	FirstReviewGoodDays int
	FirstReviewEasyDays int

	AgainIntervalMinutes int
	MaxIntervalDays      int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor:      1.3,
		MaxEaseFactor:      2.5,
		DefaultEaseFactor:  2.5,
		DifficultyEaseStep: 0.15,

		EaseFactorAdjustment: map[domain.Rating]float64{
			domain.RatingAgain: -0.20,
			domain.RatingHard:  -0.15,
			domain.RatingGood:  0.0,
			domain.RatingEasy:  0.15,
		},

		IntervalModifier: map[domain.Rating]float64{
			domain.RatingHard: 1.2, // Slight increase, ignores ease
			domain.RatingGood: 1.0, // Ease factor applied as is
			domain.RatingEasy: 1.3, // Bonus on top of ease factor
		},

		FirstReviewIntervals: map[domain.Rating]time.Duration{
			domain.RatingHard: 1 * Day,
			domain.RatingGood: 2 * Day,
			domain.RatingEasy: 4 * Day,
		},

		AgainInterval: 10 * time.Minute,
		MaxInterval:   36500 * Day,
	}
}

// NewParams creates a new Params instance with custom configuration and
// validates the result.
func NewParams(config ParamsConfig) (*Params, error) {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
		params.DefaultEaseFactor = config.MaxEaseFactor
	}

	overrides := []struct {
		rating domain.Rating
		value  float64
	}{
		{domain.RatingAgain, config.AgainEaseFactorAdjustment},
		{domain.RatingHard, config.HardEaseFactorAdjustment},
		{domain.RatingGood, config.GoodEaseFactorAdjustment},
		{domain.RatingEasy, config.EasyEaseFactorAdjustment},
	}
	for _, o := range overrides {
		if o.value != 0 {
			params.EaseFactorAdjustment[o.rating] = o.value
		}
	}

	if config.HardIntervalModifier > 0 {
		params.IntervalModifier[domain.RatingHard] = config.HardIntervalModifier
	}
	if config.GoodIntervalModifier > 0 {
		params.IntervalModifier[domain.RatingGood] = config.GoodIntervalModifier
	}
	if config.EasyIntervalModifier > 0 {
		params.IntervalModifier[domain.RatingEasy] = config.EasyIntervalModifier
	}

	if config.FirstReviewHardDays > 0 {
		params.FirstReviewIntervals[domain.RatingHard] = time.Duration(config.FirstReviewHardDays) * Day
	}
	if config.FirstReviewGoodDays > 0 {
		params.FirstReviewIntervals[domain.RatingGood] = time.Duration(config.FirstReviewGoodDays) * Day
	}
	if config.FirstReviewEasyDays > 0 {
		params.FirstReviewIntervals[domain.RatingEasy] = time.Duration(config.FirstReviewEasyDays) * Day
	}

	if config.AgainIntervalMinutes > 0 {
		params.AgainInterval = time.Duration(config.AgainIntervalMinutes) * time.Minute
	}
	if config.MaxIntervalDays > 0 {
		params.MaxInterval = time.Duration(config.MaxIntervalDays) * Day
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Validate checks that the parameters keep every rating strictly ordered for
// identical prior state and that all intervals stay positive.
func (p *Params) Validate() error {
	switch {
	case p.MinEaseFactor <= 0:
		return fmt.Errorf("%w: minimum ease factor must be positive", ErrInvalidParams)
	case p.MaxEaseFactor < p.MinEaseFactor:
		return fmt.Errorf("%w: maximum ease factor below minimum", ErrInvalidParams)
	case p.DefaultEaseFactor < p.MinEaseFactor || p.DefaultEaseFactor > p.MaxEaseFactor:
		return fmt.Errorf("%w: default ease factor outside bounds", ErrInvalidParams)
	case p.DifficultyEaseStep < 0:
		return fmt.Errorf("%w: difficulty ease step cannot be negative", ErrInvalidParams)
	case p.AgainInterval <= 0:
		return fmt.Errorf("%w: again interval must be positive", ErrInvalidParams)
	}

	hard := p.FirstReviewIntervals[domain.RatingHard]
	good := p.FirstReviewIntervals[domain.RatingGood]
	easy := p.FirstReviewIntervals[domain.RatingEasy]
	if !(p.AgainInterval < hard && hard < good && good < easy) {
		return fmt.Errorf("%w: first review intervals must satisfy again < hard < good < easy", ErrInvalidParams)
	}
	if p.MaxInterval < easy {
		return fmt.Errorf("%w: maximum interval below first easy interval", ErrInvalidParams)
	}
	if intervalCeiling(domain.RatingHard, p) <= p.AgainInterval {
		return fmt.Errorf("%w: maximum interval leaves no room above the again interval", ErrInvalidParams)
	}

	hardMod := p.IntervalModifier[domain.RatingHard]
	goodMod := p.IntervalModifier[domain.RatingGood]
	easyMod := p.IntervalModifier[domain.RatingEasy]
	if hardMod < 1 {
		return fmt.Errorf("%w: hard interval modifier must be at least 1", ErrInvalidParams)
	}
	if p.MinEaseFactor*goodMod <= hardMod {
		return fmt.Errorf("%w: good interval must outgrow hard at the minimum ease factor", ErrInvalidParams)
	}
	if easyMod <= goodMod {
		return fmt.Errorf("%w: easy interval modifier must exceed good", ErrInvalidParams)
	}
	if p.EaseFactorAdjustment[domain.RatingEasy] < p.EaseFactorAdjustment[domain.RatingGood] {
		return fmt.Errorf("%w: easy ease adjustment below good", ErrInvalidParams)
	}

	return nil
}
