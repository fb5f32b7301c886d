package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the config reads,
// e.g. MAILSORT_IMAP_PASSWORD.
const EnvPrefix = "MAILSORT"

const (
	DefaultServer      = "imap.gmail.com:993"
	DefaultMailbox     = "INBOX"
	DefaultMaxMessages = 10
	DefaultTimeoutSec  = 60
	DefaultHistoryKeep = 200
)

// Output formats accepted by the console presenter.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// SecretPair holds account credentials for a single mailbox.
type SecretPair struct {
	Username string
	Password string
}

// String never includes the password.
func (s SecretPair) String() string {
	return fmt.Sprintf("%s:<redacted>", s.Username)
}

// Complete reports whether both halves of the pair are present.
func (s SecretPair) Complete() bool {
	return s.Username != "" && s.Password != ""
}

// Config is everything a single fetch run needs.
type Config struct {
	// Server is the IMAP endpoint as host:port.
	Server string

	// Mailbox is the mailbox selected before listing.
	Mailbox string

	// MaxMessages is how many of the most recent messages are fetched.
	MaxMessages int

	Credentials SecretPair

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration
}

// IMAPConfig holds the mail server settings.
type IMAPConfig struct {
	// Server is host:port of the IMAPS endpoint.
	Server string `mapstructure:"server" yaml:"server"`

	// Mailbox is the mailbox to list (usually INBOX).
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// Username is the account identifier used for LOGIN.
	Username string `mapstructure:"username" yaml:"username"`

	// Password is only read from the environment; it is never written
	// back to the config file.
	Password string `mapstructure:"password" yaml:"-"`

	// MaxMessages is the trailing window size K.
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`

	// TimeoutSec bounds one fetch run.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives logs in interactive mode. Console mode logs to stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`

	// Keep is how many runs survive pruning after each record. Zero keeps
	// every run.
	Keep int `mapstructure:"keep" yaml:"keep"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every run when non-empty.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// Format is the console output format: table, json or yaml.
	Format string `mapstructure:"format" yaml:"format"`

	// RefreshIntervalSec re-runs the fetch in interactive mode. Zero
	// disables auto refresh.
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// FetchConfig builds the per-run configuration from the app settings and
// the given credentials.
func (c *AppConfig) FetchConfig(creds SecretPair) Config {
	return Config{
		Server:      c.IMAP.Server,
		Mailbox:     c.IMAP.Mailbox,
		MaxMessages: c.IMAP.MaxMessages,
		Credentials: creds,
		Timeout:     time.Duration(c.IMAP.TimeoutSec) * time.Second,
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.IMAP.Server) == "" {
		return fmt.Errorf("imap.server must not be empty")
	}
	if c.IMAP.MaxMessages < 0 {
		return fmt.Errorf("imap.max_messages must be >= 0, got %d", c.IMAP.MaxMessages)
	}
	switch c.Display.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("display.format %q is not one of table, json, yaml", c.Display.Format)
	}
	if c.Display.RefreshIntervalSec < 0 {
		return fmt.Errorf("display.refresh_interval_sec must be >= 0")
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must be >= 0, got %d", c.History.Keep)
	}
	return nil
}

// ConfigDir returns ~/.config/mailsort, or the working directory when the
// home directory cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailsort")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailsort/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"imap.server":                  "server",
	"imap.mailbox":                 "mailbox",
	"imap.username":                "user",
	"imap.max_messages":            "max",
	"imap.timeout_sec":             "timeout",
	"log.level":                    "log-level",
	"history.enabled":              "history",
	"metrics.textfile":             "metrics-textfile",
	"display.format":               "format",
	"display.refresh_interval_sec": "refresh",
}

func setDefaults(v *viper.Viper) {
	dir := ConfigDir()
	v.SetDefault("imap.server", DefaultServer)
	v.SetDefault("imap.mailbox", DefaultMailbox)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.max_messages", DefaultMaxMessages)
	v.SetDefault("imap.timeout_sec", DefaultTimeoutSec)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "mailsort.log"))
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", filepath.Join(dir, "history.db"))
	v.SetDefault("history.keep", DefaultHistoryKeep)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("display.format", FormatTable)
	v.SetDefault("display.refresh_interval_sec", 0)
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// layering MAILSORT_* environment variables and any changed flags on top.
// A missing file is not an error. flags may be nil.
func LoadConfig(path string, flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.Metrics.Textfile = expandHome(cfg.Metrics.Textfile)

	return cfg, nil
}

// SaveUsername records username under imap.username in the YAML file at
// path, creating the file and its directory if needed. Only keys already
// in the file are written back: defaults, environment variables and flags
// never leak into it.
func SaveUsername(path, username string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.Set("imap.username", username)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
