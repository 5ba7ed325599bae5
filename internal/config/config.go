package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"wishmaker/internal/kv"
)

// EnvPrefix prefixes every environment override, e.g. WISHMAKER_LISTEN.
const EnvPrefix = "WISHMAKER"

// DefaultPath is where the CLI looks for its config file.
const DefaultPath = "~/.config/wishmaker/config.yaml"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ErrSlotCollision is returned when wishes and events would share a slot.
var ErrSlotCollision = errors.New("wishes and events must use distinct slots")

// StorageConfig selects the KV backend and the slot names.
type StorageConfig struct {
	// Backend is one of "file" (default), "sqlite" or "memory".
	Backend string `yaml:"backend" json:"backend" split_words:"true"`
	// Path is the data directory (file) or database file (sqlite).
	Path string `yaml:"path" json:"path" split_words:"true"`

	WishesSlot string `yaml:"wishes_slot" json:"wishes_slot" split_words:"true"`
	EventsSlot string `yaml:"events_slot" json:"events_slot" split_words:"true"`

	// StrictDecode surfaces undecodable slots instead of treating them as
	// empty lists.
	StrictDecode bool `yaml:"strict_decode" json:"strict_decode" split_words:"true"`
}

// CalendarConfig controls the device calendar mirror.
type CalendarConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" split_words:"true"`
	// Path is the .ics file events are mirrored into.
	Path string `yaml:"path" json:"path" split_words:"true"`
	// SyncCron is a cron schedule for re-mirroring all stored events.
	// Empty disables the periodic sync.
	SyncCron string `yaml:"sync_cron" json:"sync_cron" split_words:"true"`
	// HorizonDays is the default agenda window.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" split_words:"true"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" split_words:"true"`

	// Timezone is the IANA timezone used to display agenda occurrences.
	Timezone string `yaml:"timezone" json:"timezone" split_words:"true"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level" split_words:"true"`

	Storage  StorageConfig  `yaml:"storage" json:"storage" split_words:"true"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar" split_words:"true"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" ignored:"true"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "Local",
		LogLevel: "info",
		Storage: StorageConfig{
			Backend:    BackendFile,
			Path:       "~/.local/share/wishmaker",
			WishesSlot: "savedWishes",
			EventsSlot: "savedEvents",
		},
		Calendar: CalendarConfig{
			Enabled:     true,
			Path:        "~/.local/share/wishmaker/calendar.ics",
			SyncCron:    "*/15 * * * *",
			HorizonDays: 7,
		},
	}
}

// Normalize fills in missing values with defaults so partially-filled
// configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.WishesSlot == "" {
		c.Storage.WishesSlot = def.Storage.WishesSlot
	}
	if c.Storage.EventsSlot == "" {
		c.Storage.EventsSlot = def.Storage.EventsSlot
	}
	if c.Calendar.Path == "" {
		c.Calendar.Path = def.Calendar.Path
	}
	if c.Calendar.HorizonDays <= 0 {
		c.Calendar.HorizonDays = def.Calendar.HorizonDays
	}
}

// Validate reports configuration that cannot work. Slot collisions are
// rejected rather than silently renamed: a shared slot would make one list
// overwrite the other.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if err := kv.ValidateSlot(c.Storage.WishesSlot); err != nil {
		return fmt.Errorf("wishes_slot: %w", err)
	}
	if err := kv.ValidateSlot(c.Storage.EventsSlot); err != nil {
		return fmt.Errorf("events_slot: %w", err)
	}
	if c.Storage.WishesSlot == c.Storage.EventsSlot {
		return fmt.Errorf("%w: both are %q", ErrSlotCollision, c.Storage.WishesSlot)
	}
	if c.Calendar.Enabled && c.Calendar.SyncCron != "" {
		if _, err := cron.ParseStandard(c.Calendar.SyncCron); err != nil {
			return fmt.Errorf("calendar.sync_cron: %w", err)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is read over the defaults.
//
// Environment overrides are not applied here; see ApplyEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so keys missing from the file keep their default.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// ApplyEnv overrides fields from WISHMAKER_* environment variables, e.g.
// WISHMAKER_STORAGE_BACKEND=sqlite. Unset variables leave values alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	c.Normalize()
	return nil
}

// Save writes cfg to path as YAML, atomically, with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return kv.WriteFileAtomic(ExpandPath(path), data, 0o600)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
