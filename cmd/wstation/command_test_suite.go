//go:build test

package main

import (
	"bytes"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/testutils"
	"github.com/srg/wstation/pkg/config"
	"github.com/srg/wstation/scanner"
	"github.com/stretchr/testify/suite"
)

// fixedNow is the wall clock seen by commands under test
var fixedNow = time.Date(2024, 3, 15, 14, 30, 45, 0, time.UTC)

// CommandTestSuite runs wstation commands against a simulated station and radio.
// All cmd/wstation test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	Station *testutils.FakeStation
	Radio   *testutils.ReplayRadio
	Config  *config.Config // configuration the last command resolved

	origConnector func(*config.Config, *logrus.Logger) (device.Connector, func() error)
	origRadio     func() (scanner.Radio, func() error, error)
	origNow       func() time.Time
	origLogOutput io.Writer
}

func (s *CommandTestSuite) SetupTest() {
	s.Station = testutils.NewFakeStation()
	s.Radio = testutils.NewReplayRadio()
	s.Config = nil

	s.origConnector, s.origRadio, s.origNow, s.origLogOutput = openConnector, openRadio, now, logOutput

	openConnector = func(cfg *config.Config, _ *logrus.Logger) (device.Connector, func() error) {
		s.Config = cfg
		return s.Station, func() error { return nil }
	}
	openRadio = func() (scanner.Radio, func() error, error) {
		return s.Radio, func() error { return nil }, nil
	}
	now = func() time.Time { return fixedNow }
	logOutput = io.Discard

	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	openConnector, openRadio, now, logOutput = s.origConnector, s.origRadio, s.origNow, s.origLogOutput
	resetFlags(rootCmd)
}

// ExecuteCommand runs wstation with args, returns stdout and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
