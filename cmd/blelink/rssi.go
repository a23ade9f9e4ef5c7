package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// rssiCmd represents the rssi command
var rssiCmd = &cobra.Command{
	Use:   "rssi <device-address>",
	Short: "Read the signal strength of a connected device",
	Args:  cobra.ExactArgs(1),
	RunE:  runRSSI,
}

var rssiTimeout time.Duration

func init() {
	rssiCmd.Flags().DurationVar(&rssiTimeout, "timeout", 60*time.Second, "Overall timeout for connect and read")
}

func runRSSI(cmd *cobra.Command, args []string) error {
	address := args[0]

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	cmd.SilenceUsage = true

	ctx, cancel := commandContext(cmd.Context(), rssiTimeout)
	defer cancel()

	if _, err := sess.connect(ctx, address); err != nil {
		return err
	}

	rssi, err := sess.central.ReadSignalStrength(address).Wait(ctx)
	if err != nil {
		return fmt.Errorf("read RSSI: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d dBm\n", rssi)
	return nil
}
