// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

// Transport kinds
const (
	TransportTCP       = "tcp"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// SerialConfig configures the serial transport.
type SerialConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	Baud int    `mapstructure:"baud" yaml:"baud"`
}

// WebSocketConfig configures the WebSocket transport. The password is never
// read from the file; see cmd.GetPassword.
type WebSocketConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// TransportConfig selects and configures the byte stream to the devices.
type TransportConfig struct {
	Kind        string          `mapstructure:"kind" yaml:"kind"`
	Address     string          `mapstructure:"address" yaml:"address"`
	DialTimeout time.Duration   `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	Serial      SerialConfig    `mapstructure:"serial" yaml:"serial"`
	WebSocket   WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
}

// CommandConfig is one poll table row. Addresses are held wider than 12
// bits so out of range values reach Validate instead of wrapping.
type CommandConfig struct {
	Name     string         `mapstructure:"name" yaml:"name"`
	Device   uint32         `mapstructure:"device" yaml:"device"`
	Command  uint32         `mapstructure:"command" yaml:"command"`
	Metadata map[string]any `mapstructure:"metadata" yaml:"metadata,omitempty"`
}

// LumberjackConfig configures log file rotation.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig sets log level and output.
type LoggingConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`
	Format string           `mapstructure:"format" yaml:"format"`
	File   LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Addr   string `mapstructure:"addr" yaml:"addr"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// RedisConfig configures the decoded payload publisher.
type RedisConfig struct {
	Enable       bool          `mapstructure:"enable" yaml:"enable"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"-"`
	DB           int           `mapstructure:"db" yaml:"db"`
	Channel      string        `mapstructure:"channel" yaml:"channel"`
	HistoryLen   int64         `mapstructure:"historyLen" yaml:"historyLen"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
}

// Config is the top level configuration.
type Config struct {
	Station             uint32          `mapstructure:"station" yaml:"station"`
	PollIntervalSeconds float64         `mapstructure:"pollIntervalSeconds" yaml:"pollIntervalSeconds"`
	ResponseTimeout     time.Duration   `mapstructure:"responseTimeout" yaml:"responseTimeout"`
	RequestGap          time.Duration   `mapstructure:"requestGap" yaml:"requestGap"`
	StrictOrder         bool            `mapstructure:"strictOrder" yaml:"strictOrder"`
	Transport           TransportConfig `mapstructure:"transport" yaml:"transport"`
	Commands            []CommandConfig `mapstructure:"commands" yaml:"commands"`
	Logging             LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics             MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Redis               RedisConfig     `mapstructure:"redis" yaml:"redis"`
}

// Load reads configuration from a YAML/TOML/JSON file and RAINBOW_*
// environment variables. With an empty path, RAINBOW_CONFIG is consulted
// and then rainbow.yaml in . and ./configs; a missing default file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RAINBOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("rainbow")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" && v.InConfig("commands") {
		if err := restoreMetadata(&cfg, used); err != nil {
			return nil, err
		}
	}
	cfg.Normalize()
	return &cfg, nil
}

// restoreMetadata re-reads command metadata from the raw file. Viper folds
// every key to lower case, and metadata keys belong to the caller.
func restoreMetadata(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var raw struct {
		Commands []struct {
			Metadata map[string]any `yaml:"metadata"`
		} `yaml:"commands"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("read command metadata: %w", err)
	}
	if len(raw.Commands) != len(cfg.Commands) {
		return nil
	}
	for i, c := range raw.Commands {
		cfg.Commands[i].Metadata = c.Metadata
	}
	return nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults are static and always decode
	_ = v.Unmarshal(&cfg)
	cfg.Normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("station", rainbow.DefaultStation)
	v.SetDefault("pollIntervalSeconds", rainbow.DefaultPollIntervalSeconds)
	v.SetDefault("responseTimeout", "2s")
	v.SetDefault("requestGap", "0s")
	v.SetDefault("strictOrder", false)
	v.SetDefault("commands", []map[string]any{
		{"name": "inverter-1", "device": 0x001, "command": 0x006},
		{"name": "inverter-2", "device": 0x002, "command": 0x006},
	})

	v.SetDefault("transport.kind", TransportTCP)
	v.SetDefault("transport.address", fmt.Sprintf("127.0.0.1:%d", rainbow.DefaultPort))
	v.SetDefault("transport.dialTimeout", "5s")
	v.SetDefault("transport.serial.port", "")
	v.SetDefault("transport.serial.baud", 9600)
	v.SetDefault("transport.websocket.url", "")
	v.SetDefault("transport.websocket.username", "")
	v.SetDefault("transport.websocket.insecure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", false)
	v.SetDefault("metrics.addr", ":9108")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "rainbow:data")
	v.SetDefault("redis.historyLen", 1000)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.writeTimeout", "3s")
}

// Normalize fills derived defaults that viper cannot express, such as
// entry names.
func (c *Config) Normalize() {
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	for i := range c.Commands {
		if c.Commands[i].Name == "" {
			c.Commands[i].Name = fmt.Sprintf("dev-%03X/cmd-%03X", c.Commands[i].Device, c.Commands[i].Command)
		}
	}
}

// Validate rejects configurations that cannot produce a working poller.
func (c *Config) Validate() error {
	if c.Station > rainbow.MaxAddress {
		return fmt.Errorf("station 0x%X exceeds 0x%X", c.Station, rainbow.MaxAddress)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("pollIntervalSeconds must be positive, got %v", c.PollIntervalSeconds)
	}
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("responseTimeout must be positive, got %s", c.ResponseTimeout)
	}
	if c.RequestGap < 0 {
		return fmt.Errorf("requestGap must not be negative, got %s", c.RequestGap)
	}

	for i, cmd := range c.Commands {
		if cmd.Device > rainbow.MaxAddress {
			return fmt.Errorf("commands[%d] %s: device 0x%X exceeds 0x%X", i, cmd.Name, cmd.Device, rainbow.MaxAddress)
		}
		if cmd.Command > rainbow.MaxAddress {
			return fmt.Errorf("commands[%d] %s: command 0x%X exceeds 0x%X", i, cmd.Name, cmd.Command, rainbow.MaxAddress)
		}
	}

	if c.Redis.Enable && (c.Redis.Addr == "" || c.Redis.Channel == "") {
		return fmt.Errorf("redis.addr and redis.channel are required when redis is enabled")
	}

	return c.Transport.Validate()
}

// Validate checks that the selected transport has what it needs.
func (t *TransportConfig) Validate() error {
	switch t.Kind {
	case TransportTCP:
		if t.Address == "" {
			return fmt.Errorf("transport.address is required for tcp")
		}
	case TransportSerial:
		if t.Serial.Port == "" {
			return fmt.Errorf("transport.serial.port is required for serial")
		}
		if t.Serial.Baud <= 0 {
			return fmt.Errorf("transport.serial.baud must be positive, got %d", t.Serial.Baud)
		}
	case TransportWebSocket:
		if t.WebSocket.URL == "" {
			return fmt.Errorf("transport.websocket.url is required for websocket")
		}
	default:
		return fmt.Errorf("unknown transport kind %q (use tcp, serial or websocket)", t.Kind)
	}
	return nil
}

// StationAddress returns the station as a protocol address.
func (c *Config) StationAddress() uint16 {
	return uint16(c.Station)
}

// PollInterval returns the advisory spacing between poll cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

// Entries converts the configured commands to poll table entries.
func (c *Config) Entries() []rainbow.CommandEntry {
	entries := make([]rainbow.CommandEntry, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		entries = append(entries, rainbow.CommandEntry{
			Name:     cmd.Name,
			Device:   uint16(cmd.Device),
			Command:  uint16(cmd.Command),
			Metadata: cmd.Metadata,
		})
	}
	return entries
}
