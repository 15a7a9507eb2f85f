// Package config loads the phyloeval CLI's demo-run configuration from a
// strict YAML document.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DemoConfig overrides the "run" command's flag defaults. Zero-value fields
// mean "not set in YAML"; flags already parsed from the command line are
// only overridden for fields present in the YAML document.
type DemoConfig struct {
	EdgeLength *float64 `yaml:"edge_length"`
	State1     *int     `yaml:"state1"`
	State2     *int     `yaml:"state2"`
	Resource   string   `yaml:"resource"`
	LogLevel   string   `yaml:"log"`
}

// Load reads and strictly parses a YAML demo-config file: unrecognized
// keys are rejected rather than silently ignored.
func Load(path string) (*DemoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading demo config: %w", err)
	}
	var cfg DemoConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing demo config: %w", err)
	}
	return &cfg, nil
}
