package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWish(t *testing.T) {
	w, err := NewWish("  Learn Rust\n")
	require.NoError(t, err)
	assert.Equal(t, Wish("Learn Rust"), w)

	for _, blank := range []string{"", "   ", "\n\t"} {
		_, err := NewWish(blank)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBlankField), "input %q", blank)
	}
}

func TestNewEventRequiresTitleAndDescription(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	ev, err := NewEvent(" Gym ", "Leg day ", start, end)
	require.NoError(t, err)
	assert.Equal(t, "Gym", ev.Title)
	assert.Equal(t, "Leg day", ev.Description)

	_, err = NewEvent(" ", "Leg day", start, end)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "title", fe.Field)

	_, err = NewEvent("Gym", "", start, end)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "description", fe.Field)
	assert.ErrorIs(t, err, ErrBlankField)
}

func TestNewEventAllowsEndBeforeStart(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ev, err := NewEvent("Gym", "Leg day", start, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, ev.EndDate.Before(ev.StartDate))
}

func TestEventJSONFieldNames(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	data, err := json.Marshal(Event{Title: "Gym", Description: "Leg day", StartDate: start, EndDate: start})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Gym","description":"Leg day","startDate":"2025-03-01T09:00:00Z","endDate":"2025-03-01T09:00:00Z"}`, string(data))

	data, err = json.Marshal([]Wish{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(data))
}
