package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blelink/internal/bledb"
	"github.com/srg/blelink/internal/device"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <device-address>",
	Short: "Inspect services and characteristics of a BLE device",
	Long: fmt.Sprintf(`Connects to a BLE device by address and prints its services,
characteristics, and descriptors.

Examples:
  blelink inspect %s
  blelink inspect %s --refresh --json

%s`, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectTimeout time.Duration
	inspectRefresh bool
	inspectJSON    bool
)

func init() {
	inspectCmd.Flags().DurationVar(&inspectTimeout, "timeout", 60*time.Second, "Overall timeout for connect and discovery")
	inspectCmd.Flags().BoolVar(&inspectRefresh, "refresh", false, "Drop the cached attribute table and rediscover")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	address := args[0]

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := commandContext(cmd.Context(), inspectTimeout)
	defer cancel()

	progress := NewProgressPrinter(cmd.ErrOrStderr(), fmt.Sprintf("Inspecting device %s", address), "Connecting")
	progress.Start()
	defer progress.Stop()

	topology, err := sess.connect(ctx, address)
	if err != nil {
		return err
	}

	if inspectRefresh {
		progress.Callback()("Refreshing")
		topology, err = sess.central.RefreshTopology(address, sess.cfg.RefreshDelay).Wait(ctx)
		if err != nil {
			return err
		}
	}
	progress.Stop()

	out := cmd.OutOrStdout()
	if inspectJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(topology)
	}
	printTopology(out, topology)
	return nil
}

func printTopology(out io.Writer, topology *device.Topology) {
	fmt.Fprintf(out, "Device %s: %d services, %d characteristics\n",
		topology.Address, len(topology.Services), topology.CharacteristicCount())

	for _, svc := range topology.Services {
		fmt.Fprintf(out, "  Service %s%s\n", svc.UUID, displayName(svc.Name))
		for _, char := range svc.Characteristics {
			fmt.Fprintf(out, "    Characteristic %s%s [%s] #%d\n",
				char.UUID, displayName(char.Name), char.Properties, char.Instance)
			for _, desc := range char.Descriptors {
				fmt.Fprintf(out, "      Descriptor %s%s\n", desc, displayName(bledb.LookupDescriptor(desc)))
			}
		}
	}
}

func displayName(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}
