package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "wishmaker/internal/log"
	"wishmaker/internal/model"
	"wishmaker/internal/store"
)

const syncTimeout = time.Minute

// Syncer re-mirrors every stored event, picking up events whose mirror
// write failed when they were created.
type Syncer struct {
	events *store.List[model.Event]
	mirror Mirror

	mu   sync.Mutex
	cron *cron.Cron
}

func NewSyncer(events *store.List[model.Event], mirror Mirror) *Syncer {
	return &Syncer{events: events, mirror: mirror}
}

// Sync mirrors all stored events and returns how many were newly added.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	evs, err := s.events.Load()
	if err != nil {
		return 0, fmt.Errorf("calendar sync: load events: %w", err)
	}

	added := 0
	for i, ev := range evs {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		created, err := s.mirror.Create(ctx, EntryFor(s.events.Slot(), i, ev))
		if err != nil {
			return added, fmt.Errorf("calendar sync: event %d: %w", i, err)
		}
		if created {
			added++
		}
	}
	return added, nil
}

// Start runs Sync on the given standard cron schedule until Stop.
func (s *Syncer) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("calendar sync already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, s.runScheduled); err != nil {
		return fmt.Errorf("calendar sync: invalid schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	appLog.Info("calendar sync scheduled", "cron", spec)
	return nil
}

// Stop halts the schedule and waits for a running Sync to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (s *Syncer) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	n, err := s.Sync(ctx)
	if err != nil {
		appLog.Error("calendar sync failed", err, "added", n)
		return
	}
	appLog.Info("calendar sync completed", "added", n)
}
