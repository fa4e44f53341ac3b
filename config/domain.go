// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"time"

	"github.com/chikuno/dchat/crypto/session"
)

// SessionConfig governs the Crypto Session Layer's lifetime and
// traffic-key rotation policy (spec.md §4.1/§6's rotation_messages and
// rotation_age_seconds options).
type SessionConfig struct {
	MaxIdleTime     time.Duration `yaml:"max_idle_time" json:"max_idle_time"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxSessions     int           `yaml:"max_sessions" json:"max_sessions"`

	RotationMessages  uint64        `yaml:"rotation_messages" json:"rotation_messages"`
	RotationAgeSeconds time.Duration `yaml:"rotation_age_seconds" json:"rotation_age_seconds"`
}

// ToSessionConfig adapts SessionConfig to crypto/session.Config, the
// policy type Secure sessions are actually constructed with.
func (s *SessionConfig) ToSessionConfig() session.Config {
	return session.Config{
		MaxAge:              s.RotationAgeSeconds,
		IdleTimeout:         s.MaxIdleTime,
		RotateAfterMessages: s.RotationMessages,
	}
}

// HandshakeConfig governs the Noise-style handshake's timeout and retry
// policy.
type HandshakeConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// PeerConfig governs the Peer Fabric's connection pool, per spec.md
// §4.7 and §6's max_peers option.
type PeerConfig struct {
	MaxPeers       int           `yaml:"max_peers" json:"max_peers"`
	HealthInterval time.Duration `yaml:"health_interval" json:"health_interval"`
}

// DHTConfig governs the DHT & Peer Table's Kademlia parameters, per
// spec.md §4.2 and §6's dht_k/dht_alpha options.
type DHTConfig struct {
	K     int `yaml:"dht_k" json:"dht_k"`
	Alpha int `yaml:"dht_alpha" json:"dht_alpha"`
}

// OnionConfig governs the Onion Circuit Manager's hop count and cover
// traffic rate, per spec.md §4.3 and §6's circuit_length and
// cover_traffic_rate_per_minute options.
type OnionConfig struct {
	CircuitLength             int     `yaml:"circuit_length" json:"circuit_length"`
	CoverTrafficRatePerMinute float64 `yaml:"cover_traffic_rate_per_minute" json:"cover_traffic_rate_per_minute"`
}

// CoverLambdaPerSecond converts CoverTrafficRatePerMinute into the
// per-second mean rate onion.NewManager's coverRate parameter expects.
func (o *OnionConfig) CoverLambdaPerSecond() float64 {
	return o.CoverTrafficRatePerMinute / 60
}

// ChainConfirmationConfig governs the Chain Gateway's finality
// thresholds, per spec.md §4.6 and §6's confirmation_blocks and
// confirmation_timeout_seconds options.
type ChainConfirmationConfig struct {
	ConfirmationBlocks         int           `yaml:"confirmation_blocks" json:"confirmation_blocks"`
	ConfirmationTimeoutSeconds time.Duration `yaml:"confirmation_timeout_seconds" json:"confirmation_timeout_seconds"`
}

// DeliveryConfig governs the Delivery Tracker's Pending->Failed timer,
// per spec.md §4.5 and §6's delivery_timeout_seconds option.
type DeliveryConfig struct {
	TimeoutSeconds time.Duration `yaml:"delivery_timeout_seconds" json:"delivery_timeout_seconds"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
}

// BridgeConfig governs the Bridge Coordinator's atomic cross-chain
// rollback trigger, per spec.md §4.6 and §6's bridge_atomic_timeout_seconds
// option.
type BridgeConfig struct {
	AtomicTimeoutSeconds time.Duration `yaml:"bridge_atomic_timeout_seconds" json:"bridge_atomic_timeout_seconds"`
}

// IdentityConfig governs the identity hierarchy's derivation and
// burner-identity defaults; it takes the place of the teacher's
// W3C-DID-flavored DIDConfig since dchat identities are derived keys,
// not resolved DID documents.
type IdentityConfig struct {
	Method           string        `yaml:"method" json:"method"`
	DefaultChain     string        `yaml:"default_chain" json:"default_chain"`
	BurnerDefaultTTL time.Duration `yaml:"burner_default_ttl" json:"burner_default_ttl"`
	CacheSize        int           `yaml:"cache_size" json:"cache_size"`
	CacheTTL         time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}
