package main

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// configFileName is the optional per-target config file name, read from
// the current working directory.
const configFileName = ".instarch.yaml"

// config holds defaults .instarch.yaml may supply, overridable by flags.
type config struct {
	Workers int      `yaml:"workers"`
	Prefix  []string `yaml:"prefix"`
	Ext     []string `yaml:"ext"`
}

// loadConfig reads configFileName from the current directory, if present.
// A missing file is not an error; it yields a config with runtime.NumCPU()
// workers and no exclusions.
func loadConfig() (config, error) {
	cfg := config{Workers: runtime.NumCPU()}

	data, err := os.ReadFile(configFileName)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", configFileName, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configFileName, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return cfg, nil
}
