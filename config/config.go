// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents dchat's full configuration: the teacher's
// connection/storage/observability shape (Blockchain/KeyStore/Logging/
// Metrics/Health) plus one section per SPEC_FULL.md component that
// exposes a tunable policy.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	Blockchain *BlockchainConfig `yaml:"blockchain" json:"blockchain"`
	Identity   *IdentityConfig   `yaml:"identity" json:"identity"`
	KeyStore   *KeyStoreConfig   `yaml:"keystore" json:"keystore"`

	Session    *SessionConfig           `yaml:"session" json:"session"`
	Handshake  *HandshakeConfig         `yaml:"handshake" json:"handshake"`
	Peer       *PeerConfig              `yaml:"peer" json:"peer"`
	DHT        *DHTConfig               `yaml:"dht" json:"dht"`
	Onion      *OnionConfig             `yaml:"onion" json:"onion"`
	Chain      *ChainConfirmationConfig `yaml:"chain" json:"chain"`
	Delivery   *DeliveryConfig          `yaml:"delivery" json:"delivery"`
	Bridge     *BridgeConfig            `yaml:"bridge" json:"bridge"`

	Logging *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
	Health  *HealthConfig  `yaml:"health" json:"health"`
}

// BlockchainConfig is already defined in blockchain.go

// KeyStoreConfig represents key storage configuration
type KeyStoreConfig struct {
	Type          string `yaml:"type" json:"type"`
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	// Try to parse as YAML first
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Try JSON if YAML fails
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	// Set defaults
	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file
func SaveToFile(cfg *Config, path string) error {
	// Determine format by extension
	var data []byte
	var err error

	if path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Blockchain != nil {
		if cfg.Blockchain.GasLimit == 0 {
			cfg.Blockchain.GasLimit = 3000000
		}
		if cfg.Blockchain.MaxRetries == 0 {
			cfg.Blockchain.MaxRetries = 3
		}
		if cfg.Blockchain.RetryDelay == 0 {
			cfg.Blockchain.RetryDelay = 1 * time.Second
		}
		if cfg.Blockchain.RequestTimeout == 0 {
			cfg.Blockchain.RequestTimeout = 30 * time.Second
		}
	}

	if cfg.Identity != nil {
		if cfg.Identity.Method == "" {
			cfg.Identity.Method = "ed25519-hkdf"
		}
		if cfg.Identity.DefaultChain == "" {
			cfg.Identity.DefaultChain = "ethereum"
		}
		if cfg.Identity.BurnerDefaultTTL == 0 {
			cfg.Identity.BurnerDefaultTTL = 24 * time.Hour
		}
		if cfg.Identity.CacheSize == 0 {
			cfg.Identity.CacheSize = 100
		}
		if cfg.Identity.CacheTTL == 0 {
			cfg.Identity.CacheTTL = 5 * time.Minute
		}
	}

	if cfg.KeyStore != nil {
		if cfg.KeyStore.Type == "" {
			cfg.KeyStore.Type = "encrypted-file"
		}
		if cfg.KeyStore.Directory == "" {
			cfg.KeyStore.Directory = ".sage/keys"
		}
	}

	if cfg.Session != nil {
		if cfg.Session.MaxIdleTime == 0 {
			cfg.Session.MaxIdleTime = 30 * time.Minute
		}
		if cfg.Session.CleanupInterval == 0 {
			cfg.Session.CleanupInterval = 5 * time.Minute
		}
		if cfg.Session.MaxSessions == 0 {
			cfg.Session.MaxSessions = 10000
		}
		if cfg.Session.RotationMessages == 0 {
			cfg.Session.RotationMessages = 100
		}
		if cfg.Session.RotationAgeSeconds == 0 {
			cfg.Session.RotationAgeSeconds = 86400 * time.Second
		}
	}

	if cfg.Handshake != nil {
		if cfg.Handshake.Timeout == 0 {
			cfg.Handshake.Timeout = 30 * time.Second
		}
		if cfg.Handshake.MaxRetries == 0 {
			cfg.Handshake.MaxRetries = 3
		}
		if cfg.Handshake.RetryBackoff == 0 {
			cfg.Handshake.RetryBackoff = 1 * time.Second
		}
	}

	if cfg.Peer != nil {
		if cfg.Peer.MaxPeers == 0 {
			cfg.Peer.MaxPeers = 100
		}
		if cfg.Peer.HealthInterval == 0 {
			cfg.Peer.HealthInterval = 30 * time.Second
		}
	}

	if cfg.DHT != nil {
		if cfg.DHT.K == 0 {
			cfg.DHT.K = 20
		}
		if cfg.DHT.Alpha == 0 {
			cfg.DHT.Alpha = 3
		}
	}

	if cfg.Onion != nil {
		if cfg.Onion.CircuitLength == 0 {
			cfg.Onion.CircuitLength = 3
		}
		if cfg.Onion.CoverTrafficRatePerMinute == 0 {
			cfg.Onion.CoverTrafficRatePerMinute = 6
		}
	}

	if cfg.Chain != nil {
		if cfg.Chain.ConfirmationBlocks == 0 {
			cfg.Chain.ConfirmationBlocks = 6
		}
		if cfg.Chain.ConfirmationTimeoutSeconds == 0 {
			cfg.Chain.ConfirmationTimeoutSeconds = 300 * time.Second
		}
	}

	if cfg.Delivery != nil {
		if cfg.Delivery.TimeoutSeconds == 0 {
			cfg.Delivery.TimeoutSeconds = 1800 * time.Second
		}
		if cfg.Delivery.MaxAttempts == 0 {
			cfg.Delivery.MaxAttempts = 3
		}
	}

	if cfg.Bridge != nil {
		if cfg.Bridge.AtomicTimeoutSeconds == 0 {
			cfg.Bridge.AtomicTimeoutSeconds = 600 * time.Second
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}
}