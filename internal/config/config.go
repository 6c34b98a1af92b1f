// Package config loads pocket configuration from YAML.
//
// A config file is decoded strictly (unknown keys are rejected) and then
// validated against an embedded CUE schema. Missing keys keep their
// defaults. Example:
//
//	database: pocket.db
//	sync:
//	  interval: 3s
//	  transfer_latency: 150ms
//	  fault_rate: 0.1
//	log:
//	  level: info
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultDatabase        = "pocket.db"
	DefaultInterval        = 3 * time.Second
	DefaultTransferLatency = 100 * time.Millisecond
	DefaultLogLevel        = "info"
)

// Config is the resolved runtime configuration.
type Config struct {
	Database string
	Sync     SyncConfig
	Log      LogConfig
}

// SyncConfig controls the scheduler and the simulated device.
type SyncConfig struct {
	Interval        time.Duration
	TransferLatency time.Duration
	FaultRate       float64
}

// LogConfig controls logging.
type LogConfig struct {
	Level string
}

// file mirrors the YAML layout. Durations stay strings until the schema has
// accepted them.
type file struct {
	Database *string `yaml:"database"`
	Sync     *struct {
		Interval        *string  `yaml:"interval"`
		TransferLatency *string  `yaml:"transfer_latency"`
		FaultRate       *float64 `yaml:"fault_rate"`
	} `yaml:"sync"`
	Log *struct {
		Level *string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		Sync: SyncConfig{
			Interval:        DefaultInterval,
			TransferLatency: DefaultTransferLatency,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads the config file at path. An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML config document, layered over Default().
func Parse(data []byte) (Config, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	doc := f.document()
	if err := validate(doc); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if f.Database != nil {
		cfg.Database = *f.Database
	}
	if f.Sync != nil {
		if f.Sync.Interval != nil {
			d, err := parseDuration("sync.interval", *f.Sync.Interval)
			if err != nil {
				return Config{}, err
			}
			cfg.Sync.Interval = d
		}
		if f.Sync.TransferLatency != nil {
			d, err := parseDuration("sync.transfer_latency", *f.Sync.TransferLatency)
			if err != nil {
				return Config{}, err
			}
			cfg.Sync.TransferLatency = d
		}
		if f.Sync.FaultRate != nil {
			cfg.Sync.FaultRate = *f.Sync.FaultRate
		}
	}
	if f.Log != nil && f.Log.Level != nil {
		cfg.Log.Level = *f.Log.Level
	}

	// The schema matches duration syntax only; "0ms" is still a zero interval.
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a resolved Config (for example after flag overrides)
// against the same schema as config files.
func (c Config) Validate() error {
	return validate(map[string]any{
		"database": c.Database,
		"sync": map[string]any{
			"interval":         c.Sync.Interval.String(),
			"transfer_latency": c.Sync.TransferLatency.String(),
			"fault_rate":       c.Sync.FaultRate,
		},
		"log": map[string]any{"level": c.Log.Level},
	})
}

// SlogLevel maps Log.Level to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// document converts the decoded file into a plain map holding only the keys
// that were present.
func (f file) document() map[string]any {
	doc := map[string]any{}
	if f.Database != nil {
		doc["database"] = *f.Database
	}
	if f.Sync != nil {
		sync := map[string]any{}
		if f.Sync.Interval != nil {
			sync["interval"] = *f.Sync.Interval
		}
		if f.Sync.TransferLatency != nil {
			sync["transfer_latency"] = *f.Sync.TransferLatency
		}
		if f.Sync.FaultRate != nil {
			sync["fault_rate"] = *f.Sync.FaultRate
		}
		doc["sync"] = sync
	}
	if f.Log != nil {
		log := map[string]any{}
		if f.Log.Level != nil {
			log["level"] = *f.Log.Level
		}
		doc["log"] = log
	}
	return doc
}

func validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(doc))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError reports a config value rejected by the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// parseDuration parses a duration the schema has accepted syntactically.
// Values that overflow time.Duration still fail here.
func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &ValidationError{Err: fmt.Errorf("%s: %w", key, err)}
	}
	return d, nil
}
