// Package config loads the bridge configuration from a yaml file, with
// environment variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/habridge/habridge/rules"
	"gopkg.in/yaml.v3"
)

type Bridge struct {
	Name            string `yaml:"name"`
	Mode            string `yaml:"mode"`
	VendorName      string `yaml:"vendor_name"`
	VendorID        uint16 `yaml:"vendor_id"`
	ProductName     string `yaml:"product_name"`
	ProductID       uint16 `yaml:"product_id"`
	SoftwareVersion string `yaml:"software_version"`
}

type HomeAssistant struct {
	URL   string `yaml:"url" env:"HABRIDGE_HA_URL"`
	Token string `yaml:"token" env:"HABRIDGE_HA_TOKEN"`
}

type Filter struct {
	DefaultAccept bool         `yaml:"default_accept"`
	Rules         []rules.Rule `yaml:"rules"`
}

type Config struct {
	Bridge        Bridge        `yaml:"bridge"`
	HomeAssistant HomeAssistant `yaml:"home_assistant"`
	Filter        Filter        `yaml:"filter"`
}

// Default returns the configuration applied before any file or environment
// values.
func Default() Config {
	return Config{
		Bridge: Bridge{
			Name:        "habridge",
			Mode:        "bridged",
			VendorName:  "habridge",
			VendorID:    0xfff1,
			ProductName: "habridge",
			ProductID:   0x8000,
		},
		Filter: Filter{DefaultAccept: true},
	}
}

// Load reads a yaml config file and applies environment overrides. A
// missing path loads defaults plus environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}

		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("applying environment: %w", err)
	}

	return cfg, nil
}
