// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

var (
	decodeDevice  string
	decodeCommand string
)

// errDecodeFailed reports a rejected frame after it has been printed.
var errDecodeFailed = fmt.Errorf("frame rejected")

var decodeCmd = &cobra.Command{
	Use:   "decode <frame>",
	Short: "Validate a response frame and print its fields",
	Long: `Decode a response frame captured from the bus.

The frame is checked exactly as the poller checks it: length, start byte,
checksum, field syntax, destination station, payload length, and finally
that the source device and command belong to the poll table. With --device
and --command the frame is matched against that single entry instead of the
configured table.

Escapes \r, \n and \xNN are accepted in the argument. The terminator may be
omitted; a missing "*\n" is added before decoding.

Exit status is 1 when the frame is rejected.`,
	Example: `  rainbow decode '@3FF00100600002ABCD42*\n'
  rainbow decode '@3FF00100600001AB46' --device 001 --command 006`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeDevice, "device", "d", "", "Expected source device (hex)")
	decodeCmd.Flags().StringVarP(&decodeCommand, "command", "m", "", "Expected command code (hex)")
	decodeCmd.MarkFlagsRequiredTogether("device", "command")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	entries := cfg.Entries()
	if decodeDevice != "" {
		dev, err := parseAddress(decodeDevice)
		if err != nil {
			return fmt.Errorf("--device: %w", err)
		}
		code, err := parseAddress(decodeCommand)
		if err != nil {
			return fmt.Errorf("--command: %w", err)
		}
		entries = []rainbow.CommandEntry{{Device: dev, Command: code}}
	}

	table, err := rainbow.BuildTable(entries, cfg.StationAddress())
	if err != nil {
		return err
	}

	raw, err := frameArg(args[0])
	if err != nil {
		return err
	}

	now := time.Now()
	out := cmd.OutOrStdout()
	resp, err := rainbow.DecodeResponse(raw, table.Station(), table.Registry())
	if err != nil {
		fmt.Fprint(out, rainbow.FormatError(raw, err, now))
		return errDecodeFailed
	}
	fmt.Fprint(out, rainbow.FormatResponse(resp, now))
	return nil
}

// frameArg turns a command line argument into frame bytes, expanding
// escapes and supplying the terminator when it was left off.
func frameArg(arg string) ([]byte, error) {
	s := strings.TrimRight(arg, "\r\n")
	if strings.Contains(s, `\`) {
		var err error
		s, err = strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
		if err != nil {
			return nil, fmt.Errorf("invalid escape in frame: %w", err)
		}
		s = strings.TrimRight(s, "\r\n")
	}
	s = strings.TrimSuffix(s, string(rainbow.TrailerByte))
	return []byte(s + string(rainbow.TrailerByte) + "\n"), nil
}
