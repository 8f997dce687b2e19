// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	applog "heliecho/internal/log"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is
// given.
const DefaultConfigFile = "config.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it looks for DefaultConfigFile and falls back to built-in
// defaults when that does not exist. Environment overrides are applied after
// the file. The result is not validated yet: command line flags still get a
// say, so the caller validates once everything is merged.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applog.Debugf("Config: Loaded %s", path)

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets ENV_* variables override file values. Unparseable
// values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Debugf("Config: Overriding log_level from env: %s", val)
	}

	// ENV_DEVICE_{...}
	// These are specific to the LED strip.

	// ENV_DEVICE_PORT
	if val, ok := os.LookupEnv("ENV_DEVICE_PORT"); ok {
		cfg.Device.Port = val
		applog.Debugf("Config: Overriding device.port from env: %s", val)
	}
	// ENV_DEVICE_LED_COUNT
	if val, ok := os.LookupEnv("ENV_DEVICE_LED_COUNT"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Device.LEDCount = n
			applog.Debugf("Config: Overriding device.led_count from env: %d", n)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEVICE_LED_COUNT=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the telemetry publisher.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Debugf("Config: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Debugf("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Debugf("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WEBSOCKET_ENABLED
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
			applog.Debugf("Config: Overriding transport.websocket_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_WEBSOCKET_ENABLED=%q: %v", val, err)
		}
	}
}
