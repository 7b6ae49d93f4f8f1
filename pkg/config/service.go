package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/broute_smart_meter/pkg/wisun"
	"github.com/sirupsen/logrus"
)

func DefaultInterpreterAPIConfig() *InterpreterAPIConfig {
	return &InterpreterAPIConfig{
		SerialDevice:           "/dev/ttyUSB0",
		Baudrate:               115200,
		PollIntervalSeconds:    10,
		ChannelMask:            wisun.DefaultChannelMask,
		ScanDuration:           wisun.DefaultScanDuration,
		ExchangeTimeoutSeconds: int(wisun.DefaultExchangeTimeout / time.Second),
		AddressResolution:      "module",
		ListenAddress:          "0.0.0.0",
		ListenPort:             9039,
		LogLevel:               "info",
	}
}

func DefaultMeterCollectorConfig() *MeterCollectorConfig {
	return &MeterCollectorConfig{
		InterpreterAPIHost: "localhost:9039",
		TLSEnabled:         false,
		LogLevel:           "info",
	}
}

// LoadInterpreterAPIConfig reads the config at path, writing the defaults
// first when the file does not exist yet. The result is not validated.
func LoadInterpreterAPIConfig(path string) (*InterpreterAPIConfig, error) {
	cfg := DefaultInterpreterAPIConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadMeterCollectorConfig(path string) (*MeterCollectorConfig, error) {
	cfg := DefaultMeterCollectorConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadOrCreate decodes over the defaults in cfg, so keys missing
// from an older file keep their default value.
func loadOrCreate(path string, cfg any) error {
	// Create default if not exists
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		cfgFile, err := os.Create(path)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	// Load existing config
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *InterpreterAPIConfig) Validate() error {
	switch {
	case c.SerialDevice == "":
		return fmt.Errorf("%w: serial_device is empty", ErrInvalidConfig)
	case c.Baudrate == 0:
		return fmt.Errorf("%w: baudrate must be positive", ErrInvalidConfig)
	case c.RouteBID == "":
		return fmt.Errorf("%w: route_b_id is empty", ErrInvalidConfig)
	case c.RouteBPassword == "":
		return fmt.Errorf("%w: route_b_password is empty", ErrInvalidConfig)
	case c.PollIntervalSeconds <= 0:
		return fmt.Errorf("%w: poll_interval_seconds must be positive", ErrInvalidConfig)
	case c.ExchangeTimeoutSeconds <= 0:
		return fmt.Errorf("%w: exchange_timeout_seconds must be positive", ErrInvalidConfig)
	case c.ScanDuration < 0 || c.ScanDuration > 14:
		return fmt.Errorf("%w: scan_duration must be between 0 and 14", ErrInvalidConfig)
	case c.ListenPort <= 0 || c.ListenPort > 65535:
		return fmt.Errorf("%w: listen_port %d out of range", ErrInvalidConfig, c.ListenPort)
	}
	if mask, err := hex.DecodeString(c.ChannelMask); err != nil || len(mask) != 4 {
		return fmt.Errorf("%w: channel_mask %q is not 8 hex digits", ErrInvalidConfig, c.ChannelMask)
	}
	if _, err := wisun.ResolverByName(c.AddressResolution); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *MeterCollectorConfig) Validate() error {
	if c.InterpreterAPIHost == "" {
		return fmt.Errorf("%w: interpreter_api_host is empty", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *InterpreterAPIConfig) SessionConfig() wisun.SessionConfig {
	return wisun.SessionConfig{
		Device:          c.SerialDevice,
		Baudrate:        c.Baudrate,
		RouteBID:        c.RouteBID,
		RouteBPassword:  c.RouteBPassword,
		PollInterval:    time.Duration(c.PollIntervalSeconds) * time.Second,
		ChannelMask:     c.ChannelMask,
		ScanDuration:    c.ScanDuration,
		ExchangeTimeout: time.Duration(c.ExchangeTimeoutSeconds) * time.Second,
	}
}

func (c *InterpreterAPIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}
