// Package config loads jetlite configuration from defaults, a YAML file,
// JETLITE_* environment variables and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ha1tch/jetlite/pkg/errors"
	"github.com/ha1tch/jetlite/pkg/log"
	"github.com/ha1tch/jetlite/pkg/storage"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "JETLITE_"

// Default values.
const (
	DefaultDatabase    = ":memory:"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultWatchDir    = "."
	DefaultOutDir      = "translated"
	DefaultDebounce    = 100 * time.Millisecond
	DefaultBusyTimeout = 5000
	DefaultJournalMode = "WAL"
)

// configFiles are looked up in the working directory when no file is given.
var configFiles = []string{"jetlite.yaml", "jetlite.yml"}

// sections are the nested key groups; an env var or flag starting with one
// of them addresses a key inside it.
var sections = []string{"watch", "sqlite"}

// flagKeys maps flags whose names do not follow the key naming.
var flagKeys = map[string]string{
	"dir":      "watch.dir",
	"out-dir":  "watch.out_dir",
	"debounce": "watch.debounce",
}

var journalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true,
}

// Config holds all configuration options.
type Config struct {
	Database  string       `koanf:"database"`
	LogLevel  string       `koanf:"log_level"`
	LogFormat string       `koanf:"log_format"`
	Watch     WatchConfig  `koanf:"watch"`
	SQLite    SQLiteConfig `koanf:"sqlite"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	Dir      string        `koanf:"dir"`
	OutDir   string        `koanf:"out_dir"`
	Debounce time.Duration `koanf:"debounce"`
}

// SQLiteConfig holds the SQLite options exposed to users.
type SQLiteConfig struct {
	BusyTimeout int    `koanf:"busy_timeout"`
	JournalMode string `koanf:"journal_mode"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"database":            DefaultDatabase,
		"log_level":           DefaultLogLevel,
		"log_format":          DefaultLogFormat,
		"watch.dir":           DefaultWatchDir,
		"watch.out_dir":       DefaultOutDir,
		"watch.debounce":      DefaultDebounce,
		"sqlite.busy_timeout": DefaultBusyTimeout,
		"sqlite.journal_mode": DefaultJournalMode,
	}
}

// Load builds the configuration. Precedence, highest first: flags that were
// explicitly set, environment, config file, defaults. An empty path means
// jetlite.yaml or jetlite.yml in the working directory, if present.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "failed to load defaults").Err()
	}

	used, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "error reading config file").
				WithField("path", used).Err()
		}
	}

	// JETLITE_WATCH_OUT_DIR -> watch.out_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return sectionKey(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)))
	}), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "failed to load env vars").Err()
	}

	if flags != nil {
		known := defaults()
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = sectionKey(strings.ReplaceAll(f.Name, "-", "_"))
			}
			// Command flags such as --param are not configuration.
			if _, ok := known[key]; !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "failed to load flags").Err()
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "unable to decode config").Err()
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeConfigMissing, "config file not found").
				WithField("path", explicit).Err()
		}
		return explicit, nil
	}
	for _, name := range configFiles {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

// sectionKey turns watch_out_dir into watch.out_dir.
func sectionKey(key string) string {
	for _, s := range sections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// Validate checks option values.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.InvalidConfig("log_level", err.Error()).Err()
	}
	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		return errors.InvalidConfig("log_format", err.Error()).Err()
	}
	if c.Database == "" {
		return errors.InvalidConfig("database", "must not be empty").Err()
	}
	if c.Watch.Debounce <= 0 {
		return errors.InvalidConfig("watch.debounce", "must be positive").Err()
	}
	if c.Watch.Dir != "" && filepath.Clean(c.Watch.Dir) == filepath.Clean(c.Watch.OutDir) {
		return errors.InvalidConfig("watch.out_dir", "must differ from watch.dir").Err()
	}
	if c.SQLite.BusyTimeout < 0 {
		return errors.InvalidConfig("sqlite.busy_timeout", "must not be negative").Err()
	}
	if c.SQLite.JournalMode != "" && !journalModes[strings.ToUpper(c.SQLite.JournalMode)] {
		return errors.InvalidConfig("sqlite.journal_mode", "unknown mode "+c.SQLite.JournalMode).Err()
	}
	return nil
}

// LogConfig returns the logger configuration. Output is left unset for the
// caller to choose.
func (c *Config) LogConfig() (log.Config, error) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.Config{}, errors.InvalidConfig("log_level", err.Error()).Err()
	}
	format, err := log.ParseFormat(c.LogFormat)
	if err != nil {
		return log.Config{}, errors.InvalidConfig("log_format", err.Error()).Err()
	}

	cfg := log.DefaultConfig()
	cfg.DefaultLevel = level
	cfg.Format = format
	return cfg, nil
}

// StorageConfig returns the SQLite storage configuration.
func (c *Config) StorageConfig() storage.SQLiteConfig {
	cfg := storage.DefaultSQLiteConfig()
	cfg.Path = c.Database
	cfg.BusyTimeout = c.SQLite.BusyTimeout
	cfg.JournalMode = strings.ToUpper(c.SQLite.JournalMode)
	return cfg
}
