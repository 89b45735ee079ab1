// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Registry reader backends.
const (
	RegistryPowerShell = "powershell"
	RegistryNative     = "native"
)

// Config holds the application configuration loaded from environment variables.
// Command-line flags override individual fields after Load.
type Config struct {
	DBPath         string
	LootDir        string
	LootKey        []byte
	BatchDPAPI     bool
	Registry       string
	Host           string
	LogLevel       string
	LogFormat      string
	CommandTimeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: VEEAMDUMP_DB_PATH (veeamdump.db),
// VEEAMDUMP_LOOT_DIR (unset: artifacts are stored in the database),
// VEEAMDUMP_LOOT_KEY (hex, 32 bytes; unset: secrets stored unsealed),
// VEEAMDUMP_BATCH_DPAPI (true), VEEAMDUMP_REGISTRY (powershell),
// VEEAMDUMP_HOST (unset: the target's computer name), VEEAMDUMP_LOG_LEVEL (info),
// VEEAMDUMP_LOG_FORMAT (text), VEEAMDUMP_COMMAND_TIMEOUT (2m).
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:         "veeamdump.db",
		BatchDPAPI:     true,
		Registry:       RegistryPowerShell,
		LogLevel:       "info",
		LogFormat:      "text",
		CommandTimeout: 2 * time.Minute,
	}

	if v, ok := os.LookupEnv("VEEAMDUMP_DB_PATH"); ok {
		cfg.DBPath = v
	}
	cfg.LootDir = os.Getenv("VEEAMDUMP_LOOT_DIR")

	if v, ok := os.LookupEnv("VEEAMDUMP_LOOT_KEY"); ok && v != "" {
		key, err := ParseLootKey(v)
		if err != nil {
			return nil, fmt.Errorf("VEEAMDUMP_LOOT_KEY: %w", err)
		}
		cfg.LootKey = key
	}

	if v, ok := os.LookupEnv("VEEAMDUMP_BATCH_DPAPI"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("VEEAMDUMP_BATCH_DPAPI has invalid boolean %q: %w", v, err)
		}
		cfg.BatchDPAPI = b
	}

	if v, ok := os.LookupEnv("VEEAMDUMP_REGISTRY"); ok {
		cfg.Registry = strings.ToLower(strings.TrimSpace(v))
	}

	cfg.Host = os.Getenv("VEEAMDUMP_HOST")

	if v, ok := os.LookupEnv("VEEAMDUMP_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("VEEAMDUMP_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}

	if v, ok := os.LookupEnv("VEEAMDUMP_COMMAND_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VEEAMDUMP_COMMAND_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.CommandTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values. It is called by Load and again after flag
// overrides are applied.
func (c *Config) Validate() error {
	switch c.Registry {
	case RegistryPowerShell, RegistryNative:
	default:
		return fmt.Errorf("registry backend must be %q or %q, got %q", RegistryPowerShell, RegistryNative, c.Registry)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", c.CommandTimeout)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is empty")
	}
	return nil
}

// ParseLootKey decodes a hex-encoded 32-byte sealing key.
func ParseLootKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
