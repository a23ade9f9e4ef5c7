package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/peripheral"
	"github.com/srg/blelink/internal/protocol"
	"github.com/srg/blelink/internal/telemetry"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <device-address>",
	Short: "Stream thermometer telemetry",
	Long: fmt.Sprintf(`Connects to a thermometer, answers its clock sync and sequence
acknowledgement requests, and prints every measurement it reports.

Examples:
  # Monitor until Ctrl+C, reconnecting after every link loss
  blelink monitor %s --auto

  # Monitor for five minutes with a larger MTU
  blelink monitor %s --duration 5m --mtu 185

%s`, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

var (
	monitorAuto     bool
	monitorMTU      int
	monitorDuration time.Duration
)

func init() {
	monitorCmd.Flags().BoolVar(&monitorAuto, "auto", false, "Reconnect automatically after link loss")
	monitorCmd.Flags().IntVar(&monitorMTU, "mtu", 0, "Request this ATT MTU after connecting (0 keeps the default)")
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "Stop after this long (0 runs until Ctrl+C)")
}

// telemetryPrinter renders monitor events, in color on a terminal.
type telemetryPrinter struct {
	out     io.Writer
	value   *color.Color
	status  *color.Color
	warning *color.Color
}

func newTelemetryPrinter(out io.Writer) *telemetryPrinter {
	p := &telemetryPrinter{
		out:     out,
		value:   color.New(color.FgCyan, color.Bold),
		status:  color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
	}
	if !isTerminal(out) {
		p.value.DisableColor()
		p.status.DisableColor()
		p.warning.DisableColor()
	}
	return p
}

func (p *telemetryPrinter) Connected(topology *device.Topology) {
	p.status.Fprintf(p.out, "Connected to %s (%d services)\n", topology.Address, len(topology.Services))
}

func (p *telemetryPrinter) LinkLost(err error) {
	p.warning.Fprintf(p.out, "Link lost: %v; reconnecting...\n", err)
}

func (p *telemetryPrinter) MTU(mtu int) {
	p.status.Fprintf(p.out, "MTU %d\n", mtu)
}

func (p *telemetryPrinter) Telemetry(_ string, t protocol.Telemetry) {
	fmt.Fprintf(p.out, "%s  %s  battery %d\n",
		t.Timestamp(time.Local).Format("2006-01-02 15:04"),
		p.value.Sprint(t.Reading()),
		t.BatteryLevel())
}

func (p *telemetryPrinter) Summary(stats telemetry.Stats, readings []telemetry.Reading) {
	fmt.Fprintf(p.out, "\n%d readings in %d sessions", stats.Received, stats.Sessions)
	if stats.Overwritten > 0 {
		fmt.Fprintf(p.out, " (%d dropped from history)", stats.Overwritten)
	}
	fmt.Fprintln(p.out)
	if len(readings) > 0 {
		last := readings[len(readings)-1]
		fmt.Fprintf(p.out, "Last reading: %s, battery %d\n", p.value.Sprint(last.Value), last.Battery)
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	address := args[0]
	if monitorMTU < 0 {
		return fmt.Errorf("invalid MTU %d", monitorMTU)
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	p, err := sess.central.Register(address)
	if err != nil {
		return err
	}
	recorder, err := telemetry.NewRecorder(sess.cfg.HistorySize, sess.logger)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	printer := newTelemetryPrinter(cmd.OutOrStdout())
	defer p.AddListener(recorder)()
	defer p.AddListener(peripheral.ListenerFuncs{Telemetry: printer.Telemetry})()

	ctx, cancel := commandContext(cmd.Context(), monitorDuration)
	defer cancel()

	var connect *peripheral.Completion[*device.Topology]
	if monitorAuto {
		connect = sess.central.AutoConnect(address)
	} else {
		connect = sess.central.Connect(address)
	}

	err = watchConnection(ctx, sess, address, connect, printer)

	readings, drainErr := recorder.Drain()
	printer.Summary(recorder.Stats(), readings)
	if err != nil {
		return err
	}
	return drainErr
}

// watchConnection follows the connect stream until ctx ends or the stream
// fails for good.
func watchConnection(ctx context.Context, sess *session, address string, connect *peripheral.Completion[*device.Topology], printer *telemetryPrinter) error {
	for {
		o, err := connect.Next(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case errors.Is(err, peripheral.ErrStreamClosed):
			return nil
		case err != nil:
			return err
		}

		if o.Err != nil {
			if !o.Keep {
				if device.IsConnectionState(o.Err, device.Disconnected) {
					return fmt.Errorf("%w: %v", ErrConnectionLost, o.Err)
				}
				return o.Err
			}
			printer.LinkLost(o.Err)
			continue
		}

		printer.Connected(o.Value)
		if monitorMTU > 0 {
			mtu, err := sess.central.RequestLinkCapacity(address, monitorMTU).Wait(ctx)
			if err != nil {
				sess.logger.WithError(err).Warn("MTU request failed")
				continue
			}
			printer.MTU(mtu)
		}
	}
}
