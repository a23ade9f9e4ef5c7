package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blelink/internal/device"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <device-address> <service-uuid> <char-uuid> <hex-data>",
	Short: "Write a characteristic value",
	Long: fmt.Sprintf(`Writes hex data to a BLE characteristic.

Examples:
  # Write with response
  blelink write %s fff0 fff2 "4D FC 00 04 A3 00 01 BB"

  # Write without response
  blelink write %s fff0 fff2 0x01 --no-ack

%s`, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.ExactArgs(4),
	RunE: runWrite,
}

var (
	writeNoAck   bool
	writeTimeout time.Duration
)

func init() {
	writeCmd.Flags().BoolVar(&writeNoAck, "no-ack", false, "Write without response")
	writeCmd.Flags().DurationVar(&writeTimeout, "timeout", 60*time.Second, "Overall timeout for connect and write")
}

// parseHexData decodes hex with optional separators and 0x prefixes.
func parseHexData(dataStr string) ([]byte, error) {
	cleaned := strings.ReplaceAll(dataStr, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, "0x", "")
	cleaned = strings.ReplaceAll(cleaned, "0X", "")

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no data to write")
	}
	return data, nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	address := args[0]
	uuids, err := device.ValidateUUID(args[1], args[2])
	if err != nil {
		return err
	}
	data, err := parseHexData(args[3])
	if err != nil {
		return err
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := commandContext(cmd.Context(), writeTimeout)
	defer cancel()

	if _, err := sess.connect(ctx, address); err != nil {
		return err
	}

	if _, err := sess.central.Write(address, uuids[0], uuids[1], data, !writeNoAck).Wait(ctx); err != nil {
		return fmt.Errorf("write %s: %w", uuids[1], err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), uuids[1])
	return nil
}
