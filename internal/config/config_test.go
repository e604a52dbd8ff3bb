// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rainbow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, uint32(0x3FF), cfg.Station)
	assert.Equal(t, 3.0, cfg.PollIntervalSeconds)
	assert.Equal(t, 3*time.Second, cfg.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.ResponseTimeout)
	assert.Equal(t, TransportTCP, cfg.Transport.Kind)
	assert.Equal(t, "127.0.0.1:5843", cfg.Transport.Address)
	assert.False(t, cfg.StrictOrder)
	require.Len(t, cfg.Commands, 2)
	assert.Equal(t, uint32(0x002), cfg.Commands[1].Device)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
station: 0x100
pollIntervalSeconds: 1.5
responseTimeout: 500ms
strictOrder: true
transport:
  kind: TCP
  address: 10.0.0.5:5843
commands:
  - name: meter
    device: 0x00A
    command: 0x010
    metadata:
      unit: kWh
  - device: 0x00B
    command: 0x010
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x100), cfg.Station)
	assert.Equal(t, uint16(0x100), cfg.StationAddress())
	assert.Equal(t, 1500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.ResponseTimeout)
	assert.True(t, cfg.StrictOrder)
	assert.Equal(t, TransportTCP, cfg.Transport.Kind)
	assert.Equal(t, "10.0.0.5:5843", cfg.Transport.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)

	entries := cfg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "meter", entries[0].Name)
	assert.Equal(t, uint16(0x00A), entries[0].Device)
	assert.Equal(t, uint16(0x010), entries[0].Command)
	assert.Equal(t, "kWh", entries[0].Metadata["unit"])
	assert.Equal(t, "dev-00B/cmd-010", entries[1].Name)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MetadataKeepsCase(t *testing.T) {
	path := writeConfig(t, `
commands:
  - device: 1
    command: 6
    metadata:
      PointName: Vdc
      Scale:
        MilliUnits: 10
  - device: 2
    command: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	entries := cfg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Vdc", entries[0].Metadata["PointName"])
	assert.NotContains(t, entries[0].Metadata, "pointname")
	assert.Equal(t, map[string]any{"MilliUnits": 10}, entries[0].Metadata["Scale"])
	assert.Empty(t, entries[1].Metadata)
	assert.Equal(t, uint32(0x001), cfg.Commands[0].Device)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RAINBOW_STATION", "0x010")
	t.Setenv("RAINBOW_TRANSPORT_ADDRESS", "192.168.1.2:5843")

	cfg, err := Load(writeConfig(t, "station: 0x3FF\n"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x010), cfg.Station)
	assert.Equal(t, "192.168.1.2:5843", cfg.Transport.Address)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint32(0x3FF), cfg.Station)
	assert.Len(t, cfg.Entries(), 2)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"station too large", func(c *Config) { c.Station = 0x1000 }, "station"},
		{"zero interval", func(c *Config) { c.PollIntervalSeconds = 0 }, "pollIntervalSeconds"},
		{"zero timeout", func(c *Config) { c.ResponseTimeout = 0 }, "responseTimeout"},
		{"negative gap", func(c *Config) { c.RequestGap = -time.Second }, "requestGap"},
		{"device too large", func(c *Config) { c.Commands[0].Device = 0x1000 }, "device"},
		{"command too large", func(c *Config) { c.Commands[1].Command = 0x10000 }, "command"},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "udp" }, "unknown transport"},
		{"tcp without address", func(c *Config) { c.Transport.Address = "" }, "transport.address"},
		{"serial without port", func(c *Config) { c.Transport.Kind = TransportSerial }, "transport.serial.port"},
		{"serial zero baud", func(c *Config) {
			c.Transport.Kind = TransportSerial
			c.Transport.Serial.Port = "/dev/ttyUSB0"
			c.Transport.Serial.Baud = 0
		}, "baud"},
		{"websocket without url", func(c *Config) { c.Transport.Kind = TransportWebSocket }, "websocket.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
