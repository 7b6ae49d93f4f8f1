package config

import "errors"

var ErrInvalidConfig = errors.New("invalid config")

type MeterCollectorConfig struct {
	InterpreterAPIHost string `toml:"interpreter_api_host"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	LogLevel           string `toml:"log_level"`
}

type InterpreterAPIConfig struct {
	SerialDevice string `toml:"serial_device"`
	Baudrate     uint   `toml:"baudrate"`
	// 32 character Route-B authentication ID and its 12 character password,
	// issued by the electricity distributor.
	RouteBID               string `toml:"route_b_id"`
	RouteBPassword         string `toml:"route_b_password"`
	PollIntervalSeconds    int    `toml:"poll_interval_seconds"`
	ChannelMask            string `toml:"channel_mask"`
	ScanDuration           int    `toml:"scan_duration"`
	ExchangeTimeoutSeconds int    `toml:"exchange_timeout_seconds"`
	// "module" asks the dongle (SKLL64), "link_local" derives it locally.
	AddressResolution string `toml:"address_resolution"`
	ListenAddress     string `toml:"listen_address"`
	ListenPort        int    `toml:"listen_port"`
	// Optional DogStatsD endpoint, eg. "127.0.0.1:8125"
	StatsdAddress string `toml:"statsd_address"`
	LogLevel      string `toml:"log_level"`
}
