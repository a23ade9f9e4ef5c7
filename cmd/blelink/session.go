package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blelink/internal/central"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/devicefactory"
	"github.com/srg/blelink/pkg/config"
)

// session carries what every command needs: settings, a logger and the
// peripheral registry.
type session struct {
	cfg     *config.Config
	logger  *logrus.Logger
	central *central.Central
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	transport := devicefactory.TransportFactory(logger, cfg.TransportOptions())
	return &session{
		cfg:     cfg,
		logger:  logger,
		central: central.New(transport, logger, cfg.PeripheralOptions()),
	}, nil
}

// connect waits for the first connect outcome of address.
func (s *session) connect(ctx context.Context, address string) (*device.Topology, error) {
	o, err := s.central.Connect(address).Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Value, nil
}

func (s *session) Close() {
	s.central.Close()
}

// commandContext is cancelled by Ctrl+C and, with a positive timeout, by the deadline.
func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
