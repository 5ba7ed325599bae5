package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"

	"wishmaker/internal/kv"
	appLog "wishmaker/internal/log"
)

const productID = "-//wishmaker//Device Calendar//EN"

// ICSFile is a Mirror backed by a single .ics file.
type ICSFile struct {
	path string
	now  func() time.Time

	mu sync.Mutex // serializes read-modify-write of the file

	listenersMu sync.RWMutex
	listeners   []changeListener
	nextID      int
}

type changeListener struct {
	id int
	fn func(Entry)
}

// NewICSFile returns a mirror writing to path. The file is created on the
// first Create.
func NewICSFile(path string) *ICSFile {
	return &ICSFile{path: path, now: time.Now}
}

// Path returns the calendar file location.
func (f *ICSFile) Path() string { return f.path }

// Read returns the raw calendar. A calendar that does not exist yet reads
// as nil, nil.
func (f *ICSFile) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// OnChange registers fn to run after Create has written a new entry to the
// file. It returns a function that removes fn.
func (f *ICSFile) OnChange(fn func(Entry)) (cancel func()) {
	f.listenersMu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners = append(f.listeners, changeListener{id: id, fn: fn})
	f.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.listenersMu.Lock()
			defer f.listenersMu.Unlock()
			for i, l := range f.listeners {
				if l.id == id {
					f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Create adds e as a VEVENT unless its UID is already present. Change
// listeners run after the file is written, before Create returns.
func (f *ICSFile) Create(ctx context.Context, e Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if e.UID == "" {
		return false, errors.New("calendar: entry UID is empty")
	}

	created, err := f.write(e)
	if err != nil || !created {
		return created, err
	}
	f.notify(e)
	return true, nil
}

func (f *ICSFile) write(e Entry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return false, err
	}
	for _, ve := range cal.Events() {
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value == e.UID {
			return false, nil
		}
	}

	ve := cal.AddEvent(e.UID)
	ve.SetDtStampTime(f.now())
	ve.SetSummary(e.Title)
	if e.Note != "" {
		ve.SetDescription(e.Note)
	}
	ve.SetStartAt(e.Start)
	ve.SetEndAt(e.End)

	if err := kv.WriteFileAtomic(f.path, []byte(cal.Serialize()), 0o600); err != nil {
		return false, fmt.Errorf("calendar: write %s: %w", f.path, err)
	}
	appLog.Debug("calendar: event mirrored", "uid", e.UID, "title", e.Title, "path", f.path)
	return true, nil
}

func (f *ICSFile) notify(e Entry) {
	f.listenersMu.RLock()
	fns := make([]func(Entry), 0, len(f.listeners))
	for _, l := range f.listeners {
		fns = append(fns, l.fn)
	}
	f.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (f *ICSFile) load() (*ical.Calendar, error) {
	data, err := f.Read()
	if err != nil {
		return nil, fmt.Errorf("calendar: read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		cal := ical.NewCalendar()
		cal.SetProductId(productID)
		cal.SetMethod(ical.MethodPublish)
		return cal, nil
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("calendar: parse %s: %w", f.path, err)
	}
	return cal, nil
}
