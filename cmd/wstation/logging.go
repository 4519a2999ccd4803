package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/wstation/pkg/config"
)

// logOutput is where command loggers write (can be overridden in tests)
var logOutput io.Writer = os.Stderr

// loadConfig reads --config and applies the global flags over it.
// Only flags set on the command line override file values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("address") {
		cfg.DeviceAddress, _ = flags.GetString("address")
	}
	if flags.Changed("name") {
		cfg.DeviceName, _ = flags.GetString("name")
	}
	if flags.Changed("timezone") {
		cfg.Timezone, _ = flags.GetString("timezone")
	}
	if timeout, _ := flags.GetDuration("timeout"); timeout > 0 {
		cfg.OperationTimeout = timeout
	}
	if flags.Lookup("format") != nil && flags.Changed("format") {
		cfg.OutputFormat, _ = flags.GetString("format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// configureLogger creates the command logger from the resolved configuration.
func configureLogger(cfg *config.Config) *logrus.Logger {
	logger := cfg.NewLogger()
	logger.SetOutput(logOutput)
	return logger
}

// setup resolves configuration and logger for a command
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := configureLogger(cfg)

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true
	return cfg, logger, nil
}
