// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

var (
	encodeDevice  string
	encodeCommand string
	encodeRaw     bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the request frame for a device and command",
	Long: `Build the request frame the poller would send to a device.

Addresses are 12-bit hex values. The station is taken from the configuration
or --station. By default the frame is printed with CR and LF escaped; use
--raw to write the exact bytes, for example to pipe into a serial port.`,
	Example: `  rainbow encode --device 001 --command 006
  rainbow encode -d 2 -m 6 --station 3FF --raw > /dev/ttyUSB0`,
	Args: cobra.NoArgs,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVarP(&encodeDevice, "device", "d", "", "Device address (hex)")
	encodeCmd.Flags().StringVarP(&encodeCommand, "command", "m", "", "Command code (hex)")
	encodeCmd.Flags().BoolVar(&encodeRaw, "raw", false, "Write the raw frame bytes")
	_ = encodeCmd.MarkFlagRequired("device")
	_ = encodeCmd.MarkFlagRequired("command")
}

func runEncode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dev, err := parseAddress(encodeDevice)
	if err != nil {
		return fmt.Errorf("--device: %w", err)
	}
	code, err := parseAddress(encodeCommand)
	if err != nil {
		return fmt.Errorf("--command: %w", err)
	}

	frame := rainbow.EncodeRequest(dev, cfg.StationAddress(), code)
	if encodeRaw {
		_, err := cmd.OutOrStdout().Write(frame)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rainbow.Sanitize(frame))
	return nil
}
