package model

import (
	"errors"
	"strings"
	"time"
)

// ErrBlankField is matched (via errors.Is) by every FieldError.
var ErrBlankField = errors.New("required field is blank")

// FieldError reports which required text field was empty after trimming.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + ErrBlankField.Error()
}

func (e *FieldError) Is(target error) bool {
	return target == ErrBlankField
}

// Wish is a single free-text wish. It encodes as a bare JSON string so a
// wishes slot holds a plain array of strings.
type Wish string

func (w Wish) String() string { return string(w) }

// NewWish trims text and rejects it when nothing is left.
func NewWish(text string) (Wish, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &FieldError{Field: "wish"}
	}
	return Wish(text), nil
}

// Event is a scheduled wish. There is no ordering constraint between
// StartDate and EndDate.
type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

// NewEvent trims title and description; both are required.
func NewEvent(title, description string, start, end time.Time) (Event, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return Event{}, &FieldError{Field: "title"}
	}
	if description == "" {
		return Event{}, &FieldError{Field: "description"}
	}
	return Event{
		Title:       title,
		Description: description,
		StartDate:   start,
		EndDate:     end,
	}, nil
}

// Occurrence represents a single concrete instance of a device calendar
// event (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
