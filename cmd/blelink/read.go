package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blelink/internal/device"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <device-address> <service-uuid> <char-uuid>",
	Short: "Read a characteristic value",
	Long: fmt.Sprintf(`Reads data from a BLE characteristic.

Examples:
  # Read Battery Level characteristic
  blelink read %s 180f 2a19

  # Output as hex
  blelink read %s 180f 2a19 --hex

  # Decode well-known values (battery level, appearance, device name)
  blelink read %s 180f 2a19 --decode

%s`, exampleDeviceAddress, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.ExactArgs(3),
	RunE: runRead,
}

var (
	readHex     bool
	readDecode  bool
	readTimeout time.Duration
)

func init() {
	readCmd.Flags().BoolVar(&readHex, "hex", false, "Output as hex string (e.g., 'FF01'); raw bytes by default")
	readCmd.Flags().BoolVar(&readDecode, "decode", false, "Decode well-known characteristic values; falls back to hex")
	readCmd.Flags().DurationVar(&readTimeout, "timeout", 60*time.Second, "Overall timeout for connect and read")
}

func runRead(cmd *cobra.Command, args []string) error {
	address := args[0]
	uuids, err := device.ValidateUUID(args[1], args[2])
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

	ctx, cancel := commandContext(cmd.Context(), readTimeout)
	defer cancel()

	if _, err := sess.connect(ctx, address); err != nil {
		return err
	}

	data, err := sess.central.Read(address, uuids[0], uuids[1]).Wait(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", uuids[1], err)
	}

	out := cmd.OutOrStdout()
	if readDecode && device.IsParsableCharacteristic(uuids[1]) {
		parsed, err := device.ParseCharacteristicValue(uuids[1], data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", uuids[1], err)
		}
		if parsed != nil {
			if uuids[1] == device.NormalizeUUID(device.CharacteristicBatteryLevel) {
				parsed = fmt.Sprintf("%v%%", parsed)
			}
			fmt.Fprintln(out, parsed)
			return nil
		}
	}
	if readHex || readDecode {
		fmt.Fprintln(out, strings.ToUpper(hex.EncodeToString(data)))
		return nil
	}
	_, err = out.Write(data)
	return err
}
