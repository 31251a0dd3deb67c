// Package config loads roomstore configuration from a YAML file, a .env
// file and ROOMSTORE_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/roomstore/internal/policy"
	"github.com/roach88/roomstore/internal/replay"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ROOMSTORE_"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPebble   = "pebble"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the complete roomstore configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage" json:"storage" envPrefix:"STORAGE_"`

	DisableBroadcastMessages  bool `yaml:"disable_broadcast_messages" json:"disable_broadcast_messages" env:"DISABLE_BROADCAST_MESSAGES"`
	DisablePrivateMessages    bool `yaml:"disable_private_messages" json:"disable_private_messages" env:"DISABLE_PRIVATE_MESSAGES"`
	DisableBroadcastVariables bool `yaml:"disable_broadcast_variables" json:"disable_broadcast_variables" env:"DISABLE_BROADCAST_VARIABLES"`
	DisablePrivateVariables   bool `yaml:"disable_private_variables" json:"disable_private_variables" env:"DISABLE_PRIVATE_VARIABLES"`
	DisableProjectVariables   bool `yaml:"disable_project_variables" json:"disable_project_variables" env:"DISABLE_PROJECT_VARIABLES"`

	// Room patterns are regular expressions, which may contain commas, so
	// the environment form separates them with semicolons.
	EnabledRoomPatterns  []string `yaml:"enabled_room_patterns" json:"enabled_room_patterns" env:"ENABLED_ROOM_PATTERNS" envSeparator:";"`
	DisabledRoomPatterns []string `yaml:"disabled_room_patterns" json:"disabled_room_patterns" env:"DISABLED_ROOM_PATTERNS" envSeparator:";"`

	// DefaultRoom is replayed when a client identifies itself.
	DefaultRoom string `yaml:"default_room" json:"default_room" env:"DEFAULT_ROOM"`

	Admin AdminConfig `yaml:"admin" json:"admin" envPrefix:"ADMIN_"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver" env:"DRIVER"`
	// Path is the database file (sqlite) or directory (pebble).
	Path string `yaml:"path" json:"path" env:"PATH"`
	// URL is the connection URL (redis, postgres).
	URL string `yaml:"url" json:"url" env:"URL"`
	// Fsync is the pebble WAL sync policy: always, interval or never.
	Fsync string `yaml:"fsync" json:"fsync" env:"FSYNC"`
}

// AdminConfig configures the admin HTTP listener.
type AdminConfig struct {
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "roomstore.db",
		},
		DefaultRoom: "default",
		Admin: AdminConfig{
			Addr: "127.0.0.1:9090",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory if present, and the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode checks a YAML document against the configuration schema and merges
// it into cfg. Keys absent from the document keep their current value.
func Decode(data []byte, cfg *Config) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc) == 0 {
		return nil
	}
	if err := checkSchema(doc); err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML: %w", err)
	}
	return nil
}

// checkSchema unifies the document with #Config from schema.cue.
func checkSchema(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPebble:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	case DriverRedis, DriverPostgres:
		if c.Storage.URL == "" {
			return fmt.Errorf("storage.url is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Storage.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("unknown storage.fsync %q", c.Storage.Fsync)
	}

	if c.DefaultRoom == "" {
		return errors.New("default_room must not be empty")
	}

	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy compiles the room pattern lists.
func (c *Config) Policy() (*policy.Policy, error) {
	return policy.New(c.EnabledRoomPatterns, c.DisabledRoomPatterns)
}

// ReplayFlags returns the feature switches consumed by the replay engine.
func (c *Config) ReplayFlags() replay.Flags {
	return replay.Flags{
		DisableBroadcastMessages:  c.DisableBroadcastMessages,
		DisablePrivateMessages:    c.DisablePrivateMessages,
		DisableBroadcastVariables: c.DisableBroadcastVariables,
		DisablePrivateVariables:   c.DisablePrivateVariables,
		DisableProjectVariables:   c.DisableProjectVariables,
	}
}
