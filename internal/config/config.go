// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Bus     BusConfig     `mapstructure:"bus"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	File   string `mapstructure:"file"`   // Log file path, empty or "-" for stdout
	Format string `mapstructure:"format"` // text, json, console

	// Rotation of File
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// BusConfig defines the relay card chain and how to reach it
type BusConfig struct {
	Transport    string `mapstructure:"transport"`     // "serial", "tcp", "local"
	StartAddress int    `mapstructure:"start_address"` // Address of the first card
	Cards        int    `mapstructure:"cards"`         // Number of cards in the chain

	Timeout         time.Duration `mapstructure:"timeout"`       // Per read/write call
	InitDeadline    time.Duration `mapstructure:"init_deadline"` // Bound of the init poll loop
	RqstPause       time.Duration `mapstructure:"rqst_pause"`    // Pause between requests
	AddressWildcard bool          `mapstructure:"address_wildcard"`

	Serial SerialConfig `mapstructure:"serial"` // Used if Transport is "serial"
	Tcp    TcpConfig    `mapstructure:"tcp"`    // Used if Transport is "tcp"
	Local  LocalConfig  `mapstructure:"local"`  // Used if Transport is "local"
}

// SerialConfig defines the local serial device
type SerialConfig struct {
	Device    string `mapstructure:"device"`
	Exclusive bool   `mapstructure:"exclusive"`
}

// TcpConfig defines the serial device server
type TcpConfig struct {
	Address     string        `mapstructure:"address"` // e.g. "192.168.1.100:4001"
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LocalConfig defines the simulated card chain
type LocalConfig struct {
	Cards       int               `mapstructure:"cards"`
	Firmware    uint8             `mapstructure:"firmware"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines where simulated relay states are kept
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// ServerConfig defines the TCP device server of "relay8x serve"
type ServerConfig struct {
	Listen string        `mapstructure:"listen"` // e.g. ":4001"
	Quiet  time.Duration `mapstructure:"quiet"`  // Bus silence that ends a response
}

// MetricsConfig defines metrics export
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // node_exporter textfile collector target
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"log-level":        "log.level",
	"log-file":         "log.file",
	"log-format":       "log.format",
	"transport":        "bus.transport",
	"address":          "bus.start_address",
	"cards":            "bus.cards",
	"timeout":          "bus.timeout",
	"init-deadline":    "bus.init_deadline",
	"rqst-pause":       "bus.rqst_pause",
	"wildcard":         "bus.address_wildcard",
	"device":           "bus.serial.device",
	"tcp-address":      "bus.tcp.address",
	"metrics-textfile": "metrics.textfile",
	"listen":           "server.listen",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("bus.transport", "serial")
	v.SetDefault("bus.start_address", 1)
	v.SetDefault("bus.cards", 1)
	v.SetDefault("bus.timeout", 1000*time.Millisecond)
	v.SetDefault("bus.init_deadline", 30*time.Second)
	v.SetDefault("bus.rqst_pause", 0)
	v.SetDefault("bus.address_wildcard", false)
	v.SetDefault("bus.serial.device", "/dev/ttyUSB0")
	v.SetDefault("bus.serial.exclusive", true)
	v.SetDefault("bus.tcp.dial_timeout", 10*time.Second)
	v.SetDefault("bus.local.persistence.type", "memory")
	v.SetDefault("server.listen", ":4001")
	v.SetDefault("server.quiet", 50*time.Millisecond)
}

// LoadConfig loads configuration from defaults, the config file, RELAY8X_*
// environment variables and flags, in increasing precedence. Without an
// explicit configFile a missing file is not an error.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/relay8x/")
		v.AddConfigPath("$HOME/.relay8x")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RELAY8X")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixup(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func fixup(c *Config) {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Bus.Transport = strings.ToLower(c.Bus.Transport)
	if c.Bus.Timeout == 0 {
		c.Bus.Timeout = 1000 * time.Millisecond
	}
	if c.Bus.InitDeadline == 0 {
		c.Bus.InitDeadline = 30 * time.Second
	}
	if c.Server.Quiet <= 0 {
		c.Server.Quiet = 50 * time.Millisecond
	}
	if c.Bus.Local.Cards == 0 {
		c.Bus.Local.Cards = c.Bus.Cards
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Bus.StartAddress < 0 || c.Bus.StartAddress > 0xFF {
		return fmt.Errorf("bus.start_address %d out of range 0..255", c.Bus.StartAddress)
	}
	if c.Bus.Cards < 1 {
		return fmt.Errorf("bus.cards must be at least 1, got %d", c.Bus.Cards)
	}
	if c.Bus.StartAddress+c.Bus.Cards-1 > 0xFF {
		return fmt.Errorf("bus.cards %d from start address %d exceeds bus address range", c.Bus.Cards, c.Bus.StartAddress)
	}
	if c.Bus.RqstPause < 0 {
		return fmt.Errorf("bus.rqst_pause must not be negative")
	}
	switch c.Bus.Transport {
	case "serial":
		if c.Bus.Serial.Device == "" {
			return fmt.Errorf("bus.serial.device is required for serial transport")
		}
	case "tcp":
		if c.Bus.Tcp.Address == "" {
			return fmt.Errorf("bus.tcp.address is required for tcp transport")
		}
	case "local":
	default:
		return fmt.Errorf("unknown bus.transport %q", c.Bus.Transport)
	}
	return nil
}
