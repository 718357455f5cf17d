// Package config loads the YAML configuration file into the typed
// structures the gateway, links, filter, and status API are built from.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	DAPNET  DAPNETConfig  `yaml:"dapnet"`
	POCSAG  POCSAGConfig  `yaml:"pocsag"`
	Filter  FilterConfig  `yaml:"filter"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
}

// DAPNETConfig describes the upstream TCP link and login credentials.
type DAPNETConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Callsign string `yaml:"callsign"`
	AuthKey  string `yaml:"authkey"`
	Debug    bool   `yaml:"debug"`
}

// POCSAGConfig describes the downstream UDP link to the modem.
type POCSAGConfig struct {
	LocalAddress  string `yaml:"local_address"`
	LocalPort     int    `yaml:"local_port"`
	RemoteAddress string `yaml:"remote_address"`
	RemotePort    int    `yaml:"remote_port"`
	Debug         bool   `yaml:"debug"`
}

// FilterConfig holds the RIC and regex allow/deny lists.
type FilterConfig struct {
	Whitelist          []uint32 `yaml:"whitelist"`
	Blacklist          []uint32 `yaml:"blacklist"`
	WhitelistRegexFile string   `yaml:"whitelist_regexfile"`
	BlacklistRegexFile string   `yaml:"blacklist_regexfile"`
}

// GatewayConfig holds gateway-wide settings not owned by a single link.
type GatewayConfig struct {
	// StatusAddr is the listen address for the read-only status HTTP
	// surface (e.g. ":8420"). Empty disables it.
	StatusAddr string `yaml:"status_addr"`
}

// LogConfig is the file/console logging split. cmd/dapnetgw uses Path and
// FileRoot to open the log file for logrus; the level and rotation fields
// are loaded but not applied.
type LogConfig struct {
	Path         string `yaml:"path"`
	FileRoot     string `yaml:"file_root"`
	FileLevel    int    `yaml:"file_level"`
	DisplayLevel int    `yaml:"display_level"`
	FileRotate   bool   `yaml:"file_rotate"`
}

// Load reads and parses the YAML file at path, seeding sane defaults
// before unmarshalling so a minimal config file is still valid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DAPNET: DAPNETConfig{
			Port: 43434,
		},
		POCSAG: POCSAGConfig{
			LocalAddress:  "0.0.0.0",
			LocalPort:     8010,
			RemoteAddress: "127.0.0.1",
			RemotePort:    8011,
		},
		Log: LogConfig{
			Path:         "/var/log/dapnetgateway",
			FileRoot:     "DAPNETGateway",
			FileLevel:    6,
			DisplayLevel: 6,
			FileRotate:   true,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
