package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Deck limits.
const (
	MaxDeckTitleLength       = 200
	MaxDeckDescriptionLength = 2000
	MaxExternalIDLength      = 128
)

// Deck-specific validation errors
var (
	ErrDeckIDEmpty         = fmt.Errorf("%w: deck ID cannot be empty", ErrValidation)
	ErrDeckUserIDEmpty     = fmt.Errorf("%w: deck user ID cannot be empty", ErrValidation)
	ErrDeckCourseIDEmpty   = fmt.Errorf("%w: deck course ID cannot be empty", ErrValidation)
	ErrDeckCourseIDLong    = fmt.Errorf("%w: deck course ID is too long", ErrValidation)
	ErrDeckTitleEmpty      = fmt.Errorf("%w: deck title cannot be empty", ErrValidation)
	ErrDeckTitleLong       = fmt.Errorf("%w: deck title is too long", ErrValidation)
	ErrDeckDescriptionLong = fmt.Errorf("%w: deck description is too long", ErrValidation)
)

// Deck is a named collection of cards owned by one user and tied to one course.
type Deck struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	CourseID    string    `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewDeck creates a new Deck owned by userID. Title and description are trimmed.
// Returns an error if validation fails.
func NewDeck(userID uuid.UUID, courseID, title, description string, now time.Time) (*Deck, error) {
	deck := &Deck{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    strings.TrimSpace(courseID),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := deck.Validate(); err != nil {
		return nil, err
	}

	return deck, nil
}

// Validate checks if the Deck has valid data.
func (d *Deck) Validate() error {
	if d.ID == uuid.Nil {
		return ErrDeckIDEmpty
	}
	if d.UserID == uuid.Nil {
		return ErrDeckUserIDEmpty
	}
	if d.CourseID == "" {
		return ErrDeckCourseIDEmpty
	}
	if utf8.RuneCountInString(d.CourseID) > MaxExternalIDLength {
		return ErrDeckCourseIDLong
	}
	if d.Title == "" {
		return ErrDeckTitleEmpty
	}
	if utf8.RuneCountInString(d.Title) > MaxDeckTitleLength {
		return ErrDeckTitleLong
	}
	if utf8.RuneCountInString(d.Description) > MaxDeckDescriptionLength {
		return ErrDeckDescriptionLong
	}
	return nil
}

// IsOwnedBy reports whether userID owns the deck.
func (d *Deck) IsOwnedBy(userID uuid.UUID) bool {
	return d.UserID == userID
}
