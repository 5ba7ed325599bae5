// Package calendar mirrors stored events into the device calendar, which is
// a local iCalendar file that calendar apps can subscribe to or import.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wishmaker/internal/model"
)

// uidNamespace scopes the name-based UUIDs generated for mirrored events.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:wishmaker:calendar"))

// Entry is what the device calendar receives for one event.
type Entry struct {
	UID   string
	Title string
	Note  string
	Start time.Time
	End   time.Time
}

// Mirror writes entries into a calendar. Create reports created=false when
// an entry with the same UID already exists.
type Mirror interface {
	Create(ctx context.Context, e Entry) (created bool, err error)
}

// EntryFor builds the calendar entry for the event stored at index in slot.
// The UID only depends on slot, position and content, so mirroring the same
// stored event twice is a no-op.
func EntryFor(slot string, index int, ev model.Event) Entry {
	name := fmt.Sprintf("%s/%d/%s/%d/%d", slot, index, ev.Title, ev.StartDate.UnixNano(), ev.EndDate.UnixNano())
	return Entry{
		UID:   uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@wishmaker",
		Title: ev.Title,
		Note:  ev.Description,
		Start: ev.StartDate,
		End:   ev.EndDate,
	}
}

// Nop is the mirror used when the device calendar is disabled.
type Nop struct{}

func (Nop) Create(context.Context, Entry) (bool, error) { return false, nil }
