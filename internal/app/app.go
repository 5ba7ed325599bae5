// Package app assembles the storage backend, lists, calendar mirror and
// service from a Config.
package app

import (
	"fmt"
	"io"
	"time"

	"wishmaker/internal/calendar"
	"wishmaker/internal/config"
	"wishmaker/internal/kv"
	appLog "wishmaker/internal/log"
	"wishmaker/internal/model"
	"wishmaker/internal/store"
	"wishmaker/internal/wishes"
)

// App is the wired application.
type App struct {
	Config  *config.Config
	Service *wishes.Service
	// Calendar is nil when the device calendar is disabled.
	Calendar *calendar.ICSFile
	Syncer   *calendar.Syncer

	closer io.Closer
}

// New validates cfg and builds the application.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backend, closer, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	policy := store.DecodeLenient
	if cfg.Storage.StrictDecode {
		policy = store.DecodeStrict
	}

	wishList, err := store.NewList[model.Wish](backend, cfg.Storage.WishesSlot, store.WithDecodePolicy(policy))
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	eventList, err := store.NewList[model.Event](backend, cfg.Storage.EventsSlot, store.WithDecodePolicy(policy))
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}

	a := &App{Config: cfg, closer: closer}

	var mirror calendar.Mirror = calendar.Nop{}
	if cfg.Calendar.Enabled {
		a.Calendar = calendar.NewICSFile(config.ExpandPath(cfg.Calendar.Path))
		mirror = a.Calendar
	}

	svc, err := wishes.NewService(wishList, eventList, mirror)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	a.Service = svc
	a.Syncer = calendar.NewSyncer(eventList, mirror)

	appLog.Info("app ready",
		"backend", cfg.Storage.Backend,
		"wishes_slot", cfg.Storage.WishesSlot,
		"events_slot", cfg.Storage.EventsSlot,
		"decode_policy", policy.String(),
		"calendar", cfg.Calendar.Enabled,
	)
	return a, nil
}

// Location resolves the configured display timezone, falling back to
// time.Local.
func (a *App) Location() *time.Location {
	loc, err := time.LoadLocation(a.Config.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", a.Config.Timezone)
		return time.Local
	}
	return loc
}

// Close stops the syncer and releases the storage backend.
func (a *App) Close() error {
	if a.Syncer != nil {
		a.Syncer.Stop()
	}
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func openBackend(sc config.StorageConfig) (kv.Store, io.Closer, error) {
	switch sc.Backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil, nil
	case config.BackendSQLite:
		s, err := kv.OpenSQLite(config.ExpandPath(sc.Path))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s, err := kv.NewFileStore(config.ExpandPath(sc.Path))
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
}

func closeQuietly(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		appLog.Error("close storage backend", err)
	}
}
