package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/station"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// Config holds application configuration
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level" default:"warn"`

	// DeviceName selects the station by advertised name prefix when no address is set.
	DeviceName    string `yaml:"device_name" json:"device_name" default:"WeatherStation"`
	DeviceAddress string `yaml:"device_address" json:"device_address"`

	ScanTimeout      time.Duration `yaml:"scan_timeout" json:"scan_timeout" default:"10s"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" json:"connect_timeout" default:"20s"`
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout" default:"5s"`

	OutputFormat string `yaml:"output_format" json:"output_format" default:"table"` // table, json, csv

	// Timezone the station clock runs in, as an IANA name or "Local".
	Timezone string `yaml:"timezone" json:"timezone" default:"Local"`

	Profile ProfileConfig `yaml:"profile" json:"profile"`
}

// ProfileConfig overrides the station UUIDs. Empty fields keep the stock firmware values.
type ProfileConfig struct {
	Service     string `yaml:"service" json:"service,omitempty"`
	Control     string `yaml:"control" json:"control,omitempty"`
	RecordCount string `yaml:"record_count" json:"record_count,omitempty"`
	Date        string `yaml:"date" json:"date,omitempty"`
	Time        string `yaml:"time" json:"time,omitempty"`
	Temperature string `yaml:"temperature" json:"temperature,omitempty"`
	Pressure    string `yaml:"pressure" json:"pressure,omitempty"`
	Humidity    string `yaml:"humidity" json:"humidity,omitempty"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if strings.TrimSpace(c.DeviceName) == "" && strings.TrimSpace(c.DeviceAddress) == "" {
		errs = append(errs, errors.New("device_name or device_address is required"))
	}
	if c.ScanTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scan_timeout must be positive, got %s", c.ScanTimeout))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout))
	}
	if c.OperationTimeout < 0 {
		errs = append(errs, fmt.Errorf("operation_timeout must not be negative, got %s", c.OperationTimeout))
	}
	switch c.OutputFormat {
	case FormatTable, FormatJSON, FormatCSV:
	default:
		errs = append(errs, fmt.Errorf("output_format must be one of table, json, csv, got %q", c.OutputFormat))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for _, uuid := range c.Profile.overrides() {
		if _, err := device.ValidateUUID(uuid); err != nil {
			errs = append(errs, fmt.Errorf("profile: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level, InfoLevel when unparsable.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Location returns the station clock's time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// StationProfile returns the station UUID profile with overrides applied.
func (c *Config) StationProfile() station.Profile {
	p := station.DefaultProfile()
	o := c.Profile
	if o.Service != "" {
		p.Service = o.Service
	}
	for id, uuid := range map[station.CharacteristicID]string{
		station.Control:     o.Control,
		station.RecordCount: o.RecordCount,
		station.Date:        o.Date,
		station.Time:        o.Time,
		station.Temperature: o.Temperature,
		station.Pressure:    o.Pressure,
		station.Humidity:    o.Humidity,
	} {
		if uuid != "" {
			p.Characteristics[id] = uuid
		}
	}
	return p
}

func (p ProfileConfig) overrides() []string {
	var out []string
	for _, uuid := range []string{p.Service, p.Control, p.RecordCount, p.Date, p.Time, p.Temperature, p.Pressure, p.Humidity} {
		if uuid != "" {
			out = append(out, uuid)
		}
	}
	return out
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
