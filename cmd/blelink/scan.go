package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Discovered devices are listed in the order they were first seen, with the
latest RSSI and advertised services.`,
	RunE: runScan,
}

var (
	scanDuration    time.Duration
	scanFormat      string
	scanServices    []string
	scanAllowList   []string
	scanBlockList   []string
	scanNoDuplicate bool
	scanWatch       bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Filter by service UUIDs")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
	scanCmd.Flags().BoolVar(&scanNoDuplicate, "no-duplicates", true, "Filter duplicate advertisements")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Print devices as they are discovered")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	var serviceUUIDs []string
	if len(scanServices) > 0 {
		var err error
		serviceUUIDs, err = device.ValidateUUID(scanServices...)
		if err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := &scanner.Options{
		Duration:        sess.cfg.ScanTimeout,
		DuplicateFilter: scanNoDuplicate,
		ServiceUUIDs:    serviceUUIDs,
		AllowList:       scanAllowList,
		BlockList:       scanBlockList,
	}
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}

	ctx, cancel := commandContext(cmd.Context(), 0)
	defer cancel()

	s := scanner.New(sess.logger, sess.central)
	out := cmd.OutOrStdout()

	watchDone := make(chan struct{})
	watchStopped := make(chan struct{})
	if scanWatch {
		go func() {
			defer close(watchStopped)
			for {
				select {
				case ev := <-s.Events():
					if ev.Type == scanner.EventNew {
						fmt.Fprintf(out, "+ %s %q %d dBm\n", ev.Advertising.Address, ev.Advertising.LocalName, ev.Advertising.RSSI)
					}
				case <-watchDone:
					return
				}
			}
		}()
	} else {
		close(watchStopped)
	}

	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for BLE devices", "Scanning", opts.Duration, "Processing results")
	progress.Start()
	defer progress.Stop()

	results, err := s.Scan(ctx, opts, progress.Callback())
	close(watchDone)
	<-watchStopped
	if err != nil {
		sess.logger.WithError(err).Error("scan failed")
		return err
	}

	if scanFormat == "json" {
		return displayDevicesJSON(out, results)
	}
	return displayDevicesTable(out, results, time.Now())
}

func displayDevicesTable(out io.Writer, devices []*device.Advertising, now time.Time) error {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tVENDOR\tSERVICES\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, dev := range devices {
		name := dev.LocalName
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(dev.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		vendor := "-"
		if md := dev.Manufacturer(); md != nil {
			vendor = md.VendorName()
		}

		lastSeen := now.Sub(dev.SeenAt).Truncate(time.Second)
		if lastSeen < 0 {
			lastSeen = 0
		}

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\t%s ago\n",
			name, dev.Address, dev.RSSI, vendor, services, lastSeen)
	}

	return w.Flush()
}

func displayDevicesJSON(out io.Writer, devices []*device.Advertising) error {
	if devices == nil {
		devices = []*device.Advertising{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devices)
}
