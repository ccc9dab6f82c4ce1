// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads the YAML run configuration shared by the runner
// binaries: where the shell-recipe runner and YCSB generator live and which
// recipes launch the subject client and service.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk run configuration. Zero fields fall back to the
// defaults below.
type Config struct {
	// Runner is the shell-recipe runner binary invoked for client and
	// service children.
	Runner string `yaml:"runner"`
	// ClientArgs are the recipe arguments launching one KV client.
	ClientArgs []string `yaml:"client_args"`
	// ServerArgs are the recipe arguments launching the KV service.
	ServerArgs []string `yaml:"server_args"`
	// YcsbBin is the YCSB generator entry script.
	YcsbBin string `yaml:"ycsb_bin"`
	// WorkloadDir holds the workloada..workloadf profile files.
	WorkloadDir string `yaml:"workload_dir"`
}

// Default returns the configuration matching the original repo layout.
func Default() *Config {
	return &Config{
		Runner:      "just",
		YcsbBin:     "ycsb/bin/ycsb.sh",
		WorkloadDir: "ycsb/workloads",
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Runner == "" {
		cfg.Runner = "just"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Runner == "" {
		return fmt.Errorf("runner must not be empty")
	}
	if cfg.YcsbBin == "" {
		return fmt.Errorf("ycsb_bin must not be empty")
	}
	if cfg.WorkloadDir == "" {
		return fmt.Errorf("workload_dir must not be empty")
	}
	return nil
}

// WorkloadProfile maps a workload letter ('a'..'f') to its profile path.
func (cfg *Config) WorkloadProfile(workload byte) (string, error) {
	if workload < 'a' || workload > 'f' {
		return "", fmt.Errorf("workload must be one of 'a'..'f', got %q", workload)
	}
	return filepath.Join(cfg.WorkloadDir, fmt.Sprintf("workload%c", workload)), nil
}
