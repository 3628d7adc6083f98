// Package config loads maplabels settings from a YAML file, a .env file and
// the environment. Later sources override earlier ones:
//
//	defaults < config file < .env / environment < command line flags
//
// Command line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
)

// Environment variables that override file values.
const (
	EnvDatabase  = "MAPLABELS_DATABASE"
	EnvCatalog   = "MAPLABELS_CATALOG"
	EnvLogLevel  = "MAPLABELS_LOG_LEVEL"
	EnvLogFormat = "MAPLABELS_LOG_FORMAT"
	EnvFeedAddr  = "MAPLABELS_FEED_ADDR"
)

// DefaultFile is the config file read when none is given.
const DefaultFile = "maplabels.yaml"

// Config holds the settings of one labeling project.
type Config struct {
	// Database is the SQLite file holding term renderings and verse text.
	Database string `yaml:"database"`
	// Catalog is the map template XML file.
	Catalog string    `yaml:"catalog"`
	Log     LogConfig `yaml:"log"`
	Digits  Digits    `yaml:"digits"`
	// Tags maps a tag name to its [find, replace] rules.
	Tags map[string][][]string `yaml:"tags,omitempty"`
	Feed FeedConfig            `yaml:"feed"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Digits describes the vernacular number system.
type Digits struct {
	// Zero is the zero digit of the vernacular script.
	Zero string `yaml:"zero"`
}

// FeedConfig configures the websocket status feed.
type FeedConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Database: "maplabels.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Digits: Digits{Zero: "0"},
		Feed:   FeedConfig{Addr: "localhost:8737"},
	}
}

// Load reads the .env file in the working directory if present, then path,
// then the environment. A missing config file leaves the defaults in place.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// LoadDotEnv exports the variables of a .env file. Variables already set in
// the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return apperrors.NewIO("load", path, err)
	}
	return nil
}

// ReadFile overlays the YAML file at path on the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, apperrors.NewIO("read", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &apperrors.ParseError{Document: "config", Path: path, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvDatabase, &c.Database)
	set(EnvCatalog, &c.Catalog)
	set(EnvLogLevel, &c.Log.Level)
	set(EnvLogFormat, &c.Log.Format)
	set(EnvFeedAddr, &c.Feed.Addr)
}

// Validate checks the settings that can be wrong independently of any file
// they point at.
func (c *Config) Validate() error {
	if _, err := c.ZeroDigit(); err != nil {
		return err
	}
	for tag, rules := range c.Tags {
		for i, rule := range rules {
			if len(rule) != 2 {
				return apperrors.NewValidation("tags."+tag,
					fmt.Sprintf("rule %d must be a [find, replace] pair, got %d values", i, len(rule)))
			}
		}
	}
	return nil
}

// ZeroDigit returns the vernacular zero digit.
func (c *Config) ZeroDigit() (rune, error) {
	if c.Digits.Zero == "" {
		return '0', nil
	}
	r, size := utf8.DecodeRuneInString(c.Digits.Zero)
	if r == utf8.RuneError || size != len(c.Digits.Zero) {
		return 0, apperrors.NewValidation("digits.zero", "must be a single character")
	}
	return r, nil
}

// TagPairs returns the tag rules in the form the template package takes.
// Malformed rules are skipped; Validate reports them.
func (c *Config) TagPairs() map[string][][2]string {
	out := make(map[string][][2]string, len(c.Tags))
	for tag, rules := range c.Tags {
		pairs := make([][2]string, 0, len(rules))
		for _, rule := range rules {
			if len(rule) == 2 {
				pairs = append(pairs, [2]string{rule[0], rule[1]})
			}
		}
		out[tag] = pairs
	}
	return out
}

// Marshal renders the settings as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
