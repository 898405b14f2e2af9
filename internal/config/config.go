// Package config holds the runtime settings of the travelcard CLI.
//
// Sources, later ones taking precedence:
//
//  1. LoadDefaults
//  2. a .env file, then the process environment (TRAVELCARD_* variables)
//  3. command-line flags
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TRAVELCARD_"

// Config holds runtime settings.
//
// Units: every duration is a time.Duration; RetryLimit counts extra attempts
// after the first one.
type Config struct {
	Reader          string
	CardTypes       []string
	RetryLimit      int
	RetryDelay      time.Duration
	ExchangeTimeout time.Duration
	PollInterval    time.Duration
	LogLevel        string
	LogFile         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Reader = ""
	c.CardTypes = nil
	c.RetryLimit = 2
	c.RetryDelay = 50 * time.Millisecond
	c.ExchangeTimeout = 2 * time.Second
	c.PollInterval = 500 * time.Millisecond
	c.LogLevel = "info"
	c.LogFile = ""
}

// Load builds a Config from defaults, the given .env files and the
// environment. Missing .env files are skipped. Variables already set in the
// process environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	vars, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}

	if err := cfg.apply(vars); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		for k, v := range m {
			vars[k] = v
		}
		logrus.WithField("file", f).Debug("environment file loaded")
	}
	return vars, nil
}

// apply overlays TRAVELCARD_* values of vars onto c.
func (c *Config) apply(vars map[string]string) error {
	get := func(name string) (string, bool) {
		v, ok := vars[EnvPrefix+name]
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("READER"); ok {
		c.Reader = v
	}
	if v, ok := get("CARD_TYPES"); ok {
		c.CardTypes = splitList(v)
	}
	if v, ok := get("RETRY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRY_LIMIT: %w", EnvPrefix, err)
		}
		c.RetryLimit = n
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"RETRY_DELAY", &c.RetryDelay},
		{"EXCHANGE_TIMEOUT", &c.ExchangeTimeout},
		{"POLL_INTERVAL", &c.PollInterval},
	}
	for _, d := range durations {
		v, ok := get(d.name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, d.name, err)
		}
		*d.dst = parsed
	}

	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FILE"); ok {
		c.LogFile = v
	}
	return nil
}

// BindFlags registers one flag per setting on flags, defaulting to the current
// values so that flags override every earlier source.
func (c *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.Reader, "reader", "r", c.Reader, "PC/SC reader name (default: first reader)")
	flags.StringSliceVar(&c.CardTypes, "card-types", c.CardTypes, "card types to try, in order (default: all)")
	flags.IntVar(&c.RetryLimit, "retry-limit", c.RetryLimit, "extra attempts per step after a transport error")
	flags.DurationVar(&c.RetryDelay, "retry-delay", c.RetryDelay, "pause between attempts")
	flags.DurationVar(&c.ExchangeTimeout, "exchange-timeout", c.ExchangeTimeout, "timeout of a single command exchange")
	flags.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "reader polling interval")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.StringVar(&c.LogFile, "log-file", c.LogFile, "write logs to this file instead of stderr")
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.RetryLimit < 0 {
		errs = append(errs, fmt.Errorf("retry limit %d is negative", c.RetryLimit))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delay %s is negative", c.RetryDelay))
	}
	if c.ExchangeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("exchange timeout must be positive, got %s", c.ExchangeTimeout))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
