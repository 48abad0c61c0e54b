// Package config assembles goapply's options from defaults, a JSON config
// file, the environment, and finally command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/asynkron/goapply/pkg/patch"
)

// Environment variables read by ApplyEnv.
const (
	EnvFuzz     = "GOAPPLY_FUZZ"
	EnvStrip    = "GOAPPLY_STRIP"
	EnvCharset  = "GOAPPLY_CHARSET"
	EnvJobs     = "GOAPPLY_JOBS"
	EnvLogLevel = "GOAPPLY_LOG_LEVEL"
	EnvConfig   = "GOAPPLY_CONFIG"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Options holds every setting the CLI understands.
type Options struct {
	Fuzz             int    `json:"fuzz"`
	Strip            int    `json:"strip"`
	AutoStrip        bool   `json:"autoStrip"`
	Reverse          bool   `json:"reverse"`
	IgnoreWhitespace bool   `json:"ignoreWhitespace"`
	MaxOffset        int    `json:"maxOffset"`
	Charset          string `json:"charset"`
	Jobs             int    `json:"jobs"`
	Dir              string `json:"dir"`
	DryRun           bool   `json:"dryRun"`
	NoRejects        bool   `json:"noRejects"`
	LogLevel         string `json:"logLevel"`
	Color            string `json:"color"`
}

// Default returns the options used when nothing else is configured.
func Default() Options {
	o := Options{Fuzz: patch.MaxFuzz}
	o.setDefaults()
	return o
}

func (o *Options) setDefaults() {
	if strings.TrimSpace(o.Charset) == "" {
		o.Charset = patch.DefaultCharset
	}
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if strings.TrimSpace(o.LogLevel) == "" {
		o.LogLevel = string(patch.LogLevelWarn)
	}
	if strings.TrimSpace(o.Color) == "" {
		o.Color = ColorAuto
	}
}

// Validate rejects values the engine or the CLI cannot honor.
func (o Options) Validate() error {
	var errs []error
	if err := o.ApplyConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.Jobs < 1 {
		errs = append(errs, errors.New("jobs must be at least 1"))
	}
	if _, err := patch.ParseLogLevel(o.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch o.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("unknown color mode %q", o.Color))
	}
	return errors.Join(errs...)
}

// ApplyConfig converts the options into the engine's configuration.
func (o Options) ApplyConfig() patch.ApplyConfig {
	return patch.ApplyConfig{
		Fuzz:             o.Fuzz,
		Reversed:         o.Reverse,
		StripCount:       o.Strip,
		IgnoreWhitespace: o.IgnoreWhitespace,
		MaxOffset:        o.MaxOffset,
		DefaultCharset:   o.Charset,
	}
}

// Level returns the parsed log level, falling back to WARN.
func (o Options) Level() patch.LogLevel {
	level, err := patch.ParseLogLevel(o.LogLevel)
	if err != nil {
		return patch.LogLevelWarn
	}
	return level
}

// LoadFile overlays the JSON config file at path onto o. The file is
// validated against the embedded schema first, so unknown keys and
// out-of-range values are reported together.
func (o *Options) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := validateAgainstSchema(raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := json.Unmarshal(raw, o); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays GOAPPLY_* variables found through lookup, typically
// os.LookupEnv.
func (o *Options) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	intVar := func(name string, dst *int) {
		value, ok := lookup(name)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
	stringVar := func(name string, dst *string) {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}

	intVar(EnvFuzz, &o.Fuzz)
	intVar(EnvStrip, &o.Strip)
	intVar(EnvJobs, &o.Jobs)
	stringVar(EnvCharset, &o.Charset)
	stringVar(EnvLogLevel, &o.LogLevel)
	return errors.Join(errs...)
}

// Load builds options from defaults, the config file at path (skipped when
// empty), and the environment.
func Load(path string, lookup func(string) (string, bool)) (Options, error) {
	o := Default()
	if path != "" {
		if err := o.LoadFile(path); err != nil {
			return Options{}, err
		}
	}
	if lookup != nil {
		if err := o.ApplyEnv(lookup); err != nil {
			return Options{}, err
		}
	}
	return o, nil
}

// LoadDotEnv loads .env files into the process environment. A missing file
// is fine; anything else is reported.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}
