// Package wishes holds the operations the presentation surfaces call:
// building records from raw form input, appending them, and mirroring new
// events into the device calendar.
package wishes

import (
	"context"
	"errors"
	"time"

	"wishmaker/internal/calendar"
	appLog "wishmaker/internal/log"
	"wishmaker/internal/model"
	"wishmaker/internal/store"
)

// EventAddedMessage is the acknowledgment returned for every stored event.
// It does not depend on the calendar mirror outcome.
const EventAddedMessage = "Event added to calendar"

// EventInput is the raw form input for a new event.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// EventResult describes a stored event.
type EventResult struct {
	Index   int
	Event   model.Event
	Message string
	// Mirrored is true when the calendar accepted a new entry.
	Mirrored bool
}

// Service builds and stores wishes and events.
type Service struct {
	wishes *store.List[model.Wish]
	events *store.List[model.Event]
	mirror calendar.Mirror
}

// NewService wires the two lists and the calendar mirror. A nil mirror
// disables mirroring.
func NewService(wishes *store.List[model.Wish], events *store.List[model.Event], mirror calendar.Mirror) (*Service, error) {
	if wishes == nil || events == nil {
		return nil, errors.New("wishes: both lists are required")
	}
	if wishes.Slot() == events.Slot() {
		return nil, errors.New("wishes: wishes and events share slot " + wishes.Slot())
	}
	if mirror == nil {
		mirror = calendar.Nop{}
	}
	return &Service{wishes: wishes, events: events, mirror: mirror}, nil
}

// WishList exposes the wishes list, e.g. for subscribing observers.
func (s *Service) WishList() *store.List[model.Wish] { return s.wishes }

// EventList exposes the events list.
func (s *Service) EventList() *store.List[model.Event] { return s.events }

// AddWish trims text and appends it. Blank input returns a
// *model.FieldError and stores nothing.
func (s *Service) AddWish(text string) (int, model.Wish, error) {
	w, err := model.NewWish(text)
	if err != nil {
		return -1, "", err
	}
	idx, err := s.wishes.Append(w)
	if err != nil {
		return -1, "", err
	}
	appLog.Info("wish added", "index", idx)
	return idx, w, nil
}

// Wishes returns all wishes in insertion order.
func (s *Service) Wishes() ([]model.Wish, error) {
	return s.wishes.Load()
}

// AddEvent validates in, appends the event and mirrors it into the device
// calendar. Mirror failures are logged only; the event stays stored and the
// acknowledgment is still returned.
func (s *Service) AddEvent(ctx context.Context, in EventInput) (EventResult, error) {
	ev, err := model.NewEvent(in.Title, in.Description, in.Start, in.End)
	if err != nil {
		return EventResult{}, err
	}
	idx, err := s.events.Append(ev)
	if err != nil {
		return EventResult{}, err
	}

	res := EventResult{Index: idx, Event: ev, Message: EventAddedMessage}

	entry := calendar.EntryFor(s.events.Slot(), idx, ev)
	created, err := s.mirror.Create(ctx, entry)
	if err != nil {
		appLog.Error("calendar mirror failed", err, "index", idx, "uid", entry.UID)
	} else {
		res.Mirrored = created
	}

	appLog.Info("event added", "index", idx, "mirrored", res.Mirrored)
	return res, nil
}

// Events returns all events in insertion order.
func (s *Service) Events() ([]model.Event, error) {
	return s.events.Load()
}
