// Package config holds the two configuration surfaces the swap core is
// loaded from: a YAML daemon config (data dir, log level, RPC bind address,
// per-chain backend endpoints) and a TOML pairs file (rate, fee and
// timeout-delta per trading pair), keeping runtime settings and per-domain
// static tables in separate files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DaemonConfig holds the ambient settings for the swapd process.
type DaemonConfig struct {
	NetworkType       string            `yaml:"network_type"`
	DataDir           string            `yaml:"data_dir"`
	LogLevel          string            `yaml:"log_level"`
	RPCAddress        string            `yaml:"rpc_address"`
	AllowReverseSwaps bool              `yaml:"allow_reverse_swaps"`
	Backends          map[string]string `yaml:"backends,omitempty"`
}

// DaemonConfigFileName is the default daemon config file name.
const DaemonConfigFileName = "swapd.yaml"

// DefaultDaemonConfig returns a DaemonConfig with sensible defaults.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		NetworkType:       "mainnet",
		DataDir:           "~/.swapd",
		LogLevel:          "info",
		RPCAddress:        "127.0.0.1:9090",
		AllowReverseSwaps: true,
		Backends:          map[string]string{},
	}
}

// IsTestnet reports whether the daemon is configured for testnet.
func (c *DaemonConfig) IsTestnet() bool {
	return c.NetworkType == "testnet"
}

// DaemonConfigPath returns the path to the daemon config file under dataDir.
func DaemonConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), DaemonConfigFileName)
}

// LoadDaemonConfig loads the YAML daemon config from dataDir, creating a
// default one if none exists yet.
func LoadDaemonConfig(dataDir string) (*DaemonConfig, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, DaemonConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultDaemonConfig()
		cfg.DataDir = dataDir
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("create default daemon config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read daemon config: %w", err)
	}

	cfg := DefaultDaemonConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse daemon config: %w", err)
	}

	return cfg, nil
}

// Save writes the daemon config to path as YAML.
func (c *DaemonConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal daemon config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
