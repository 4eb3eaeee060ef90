package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/kgroner/enisyncd/internal/log"
)

// LoadConfig reads and parses the TOML configuration file at configPath.
// Sections missing from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	configFile := filepath.Clean(configPath)

	if !filepath.IsAbs(configFile) {
		if path, err := filepath.Abs(configFile); err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %v", err)
		} else {
			configFile = path
		}
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	config := Default()
	if err := toml.Unmarshal(content, config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf(derr.String())
			row, col := derr.Position()
			log.Errorf("Error at line %d, column %d", row, col)
			return nil, fmt.Errorf("failed to parse config file")
		}
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	config.applyDefaults()
	config._absConfigFilePath = configFile

	log.Debugf("Configuration file path: %s", configFile)

	return config, nil
}

// applyDefaults fills in sections the file omitted entirely.
func (c *Config) applyDefaults() {
	def := Default()
	if c.General == nil {
		c.General = def.General
	}
	if c.Manifest == nil {
		c.Manifest = def.Manifest
	}
	if c.Routing == nil {
		c.Routing = def.Routing
	}
	if c.Backoff == nil {
		c.Backoff = def.Backoff
	}
	if c.API == nil {
		c.API = def.API
	}
}

func (c *Config) ConfigFilePath() string {
	return c._absConfigFilePath
}
