package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/devicefactory"
	"github.com/srg/blesend/internal/session"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path
const EnvConfigPath = "BLESEND_CONFIG"

// Output formats of the scan command
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Config holds application configuration.
// The zero log level is panic, which keeps the tool silent unless asked otherwise.
type Config struct {
	LogLevel       logrus.Level  `yaml:"log_level"`
	Backend        string        `yaml:"backend" default:"goble"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"5s"`
	// Payload is sent as text, or decoded from hex when PayloadHex is set
	Payload         string `yaml:"payload"`
	PayloadHex      bool   `yaml:"payload_hex"`
	PreferWritable  bool   `yaml:"prefer_writable"`
	WithoutResponse bool   `yaml:"without_response"`
	OutputFormat    string `yaml:"output_format" default:"table"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the YAML config file at path, falling back to $BLESEND_CONFIG.
// Without either the defaults are returned. Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values flags and files can get wrong
func (c *Config) Validate() error {
	var errs []error

	if _, err := devicefactory.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]time.Duration{
		"scan_timeout":    c.ScanTimeout,
		"connect_timeout": c.ConnectTimeout,
		"write_timeout":   c.WriteTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	switch c.OutputFormat {
	case FormatTable, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q (expected table or json)", c.OutputFormat))
	}
	if _, err := c.PayloadBytes(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// PayloadBytes returns the configured payload, or nil when none is set.
// Hex payloads may carry a 0x prefix and space or colon separators.
func (c *Config) PayloadBytes() ([]byte, error) {
	if c.Payload == "" {
		return nil, nil
	}
	if !c.PayloadHex {
		return []byte(c.Payload), nil
	}

	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Payload)), "0x")
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload %q: %w", c.Payload, err)
	}
	return data, nil
}

// SessionOptions converts the config to controller options
func (c *Config) SessionOptions() (session.Options, error) {
	backend, err := devicefactory.ParseBackend(c.Backend)
	if err != nil {
		return session.Options{}, err
	}
	payload, err := c.PayloadBytes()
	if err != nil {
		return session.Options{}, err
	}

	opts := session.DefaultOptions()
	opts.Backend = backend
	opts.ScanTimeout = c.ScanTimeout
	opts.ConnectTimeout = c.ConnectTimeout
	opts.WriteTimeout = c.WriteTimeout
	opts.PreferWritable = c.PreferWritable
	opts.WithoutResponse = c.WithoutResponse
	if payload != nil {
		opts.Payload = payload
	}
	return opts, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
