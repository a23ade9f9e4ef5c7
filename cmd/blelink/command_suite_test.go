package main

import (
	"bytes"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	goble "github.com/srg/blelink/internal/device/go-ble"
	"github.com/srg/blelink/internal/devicefactory"
	"github.com/srg/blelink/internal/testutils"
)

// Test device address for consistent fake link identification
const TestDeviceAddress = "00:00:00:00:00:01"

// syncBuffer is a bytes.Buffer safe for the command and peripheral goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite runs cobra commands against a fake transport and scanner.
// All cmd/blelink test suites should embed it.
type CommandTestSuite struct {
	testutils.TransportSuite

	Scanner *testutils.FakeScanner

	restore []func()
}

func (s *CommandTestSuite) SetupTest() {
	s.TransportSuite.SetupTest()
	s.Scanner = &testutils.FakeScanner{}

	originalTransport := devicefactory.TransportFactory
	originalScanner := devicefactory.DeviceFactory
	devicefactory.TransportFactory = func(*logrus.Logger, goble.TransportOptions) device.Transport {
		return s.Transport
	}
	devicefactory.DeviceFactory = func() (device.ScanningDevice, error) {
		return s.Scanner, nil
	}
	s.restore = append(s.restore, func() {
		devicefactory.TransportFactory = originalTransport
		devicefactory.DeviceFactory = originalScanner
	})

	s.Require().NoError(rootCmd.PersistentFlags().Set("config", ""))
	s.Require().NoError(rootCmd.PersistentFlags().Set("log-level", ""))
}

func (s *CommandTestSuite) TearDownTest() {
	for i := len(s.restore) - 1; i >= 0; i-- {
		s.restore[i]()
	}
	s.restore = nil
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	out := &syncBuffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

type commandResult struct {
	out string
	err error
}

// StartCommand runs the root command in the background so the test can drive
// the fake link meanwhile.
func (s *CommandTestSuite) StartCommand(args ...string) <-chan commandResult {
	done := make(chan commandResult, 1)
	go func() {
		out, err := s.ExecuteCommand(args...)
		done <- commandResult{out: out, err: err}
	}()
	return done
}

// RequireResult waits for a command started with StartCommand.
func (s *CommandTestSuite) RequireResult(done <-chan commandResult) commandResult {
	select {
	case r := <-done:
		return r
	case <-time.After(s.Timeout):
		s.FailNow("command MUST finish")
		return commandResult{}
	}
}

// ConnectLink walks the next opened link through establishment, discovery
// and the telemetry subscription.
func (s *CommandTestSuite) ConnectLink() *testutils.FakeLink {
	link := s.RequireLink()
	link.Sink().LinkEstablished()
	s.RequireCall(link, "discover")
	link.Sink().TopologyDiscovered(testutils.ThermometerTopology(link.Address()), nil)
	s.RequireCall(link, "notify")
	link.Sink().NotifyConfigured(testutils.TelemetryRef, true, nil)
	return link
}
