// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/rainbow/internal/config"
	"github.com/Thermoquad/rainbow/internal/logging"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

var (
	configPath string
	logLevel   string
	station    string

	// TCP gateway flags
	address string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "rainbow",
	Short: "Rainbow ASCII protocol poller",
	Long: `Rainbow - A CLI tool for polling devices that speak the Rainbow ASCII
request/response protocol.

The poll table is read from the configuration file (rainbow.yaml in . or
./configs, or --config). Every entry is asked for its data in turn; each
validated response is printed, logged, and optionally exported to Prometheus
and Redis.

Connection modes:
  TCP:       --address host:5843 (default, serial gateway)
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the RAINBOW_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default rainbow.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&station, "station", "", "Station address in hex (default 3FF)")

	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "TCP gateway address (host:port)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command. Errors are printed to stderr, except
// results already reported on stdout, which only set the exit status.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errCycleStalled) && !errors.Is(err, errDecodeFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// loadConfig reads the configuration and applies command line overrides.
// Connection flags select the transport: --url wins over --port, which wins
// over --address.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) error {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if station != "" {
		v, err := parseAddress(station)
		if err != nil {
			return fmt.Errorf("--station: %w", err)
		}
		cfg.Station = uint32(v)
	}

	switch {
	case wsURL != "":
		cfg.Transport.Kind = config.TransportWebSocket
		cfg.Transport.WebSocket.URL = wsURL
		if wsUsername != "" {
			cfg.Transport.WebSocket.Username = wsUsername
		}
		if wsNoSSLVerify {
			cfg.Transport.WebSocket.Insecure = true
		}
	case portName != "":
		cfg.Transport.Kind = config.TransportSerial
		cfg.Transport.Serial.Port = portName
	case address != "":
		cfg.Transport.Kind = config.TransportTCP
		cfg.Transport.Address = address
	}
	if baudRate > 0 {
		cfg.Transport.Serial.Baud = baudRate
	}
	return nil
}

// newLogger builds the process logger from cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// parseAddress parses a 12-bit hex address with an optional 0x prefix.
func parseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q", s)
	}
	if v > rainbow.MaxAddress {
		return 0, fmt.Errorf("address %q exceeds %03X", s, rainbow.MaxAddress)
	}
	return uint16(v), nil
}
