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
	"testing"
	"time"
)

func TestSessionConfigToSessionConfigMapsFields(t *testing.T) {
	s := &SessionConfig{
		MaxIdleTime:        10 * time.Minute,
		RotationMessages:   50,
		RotationAgeSeconds: 3600 * time.Second,
	}

	sc := s.ToSessionConfig()
	if sc.IdleTimeout != s.MaxIdleTime {
		t.Errorf("IdleTimeout = %v, want %v", sc.IdleTimeout, s.MaxIdleTime)
	}
	if sc.RotateAfterMessages != s.RotationMessages {
		t.Errorf("RotateAfterMessages = %v, want %v", sc.RotateAfterMessages, s.RotationMessages)
	}
	if sc.MaxAge != s.RotationAgeSeconds {
		t.Errorf("MaxAge = %v, want %v", sc.MaxAge, s.RotationAgeSeconds)
	}
}

func TestOnionConfigCoverLambdaPerSecond(t *testing.T) {
	o := &OnionConfig{CoverTrafficRatePerMinute: 6}
	got := o.CoverLambdaPerSecond()
	if got != 0.1 {
		t.Errorf("CoverLambdaPerSecond() = %v, want 0.1", got)
	}
}

func TestPeerDHTOnionChainDefaults(t *testing.T) {
	cfg := &Config{
		Peer:  &PeerConfig{},
		DHT:   &DHTConfig{},
		Onion: &OnionConfig{},
		Chain: &ChainConfirmationConfig{},
	}
	setDefaults(cfg)

	if cfg.Peer.MaxPeers != 100 {
		t.Errorf("MaxPeers = %d, want 100", cfg.Peer.MaxPeers)
	}
	if cfg.DHT.K != 20 {
		t.Errorf("DHT.K = %d, want 20", cfg.DHT.K)
	}
	if cfg.DHT.Alpha != 3 {
		t.Errorf("DHT.Alpha = %d, want 3", cfg.DHT.Alpha)
	}
	if cfg.Onion.CircuitLength != 3 {
		t.Errorf("CircuitLength = %d, want 3", cfg.Onion.CircuitLength)
	}
	if cfg.Onion.CoverTrafficRatePerMinute != 6 {
		t.Errorf("CoverTrafficRatePerMinute = %v, want 6", cfg.Onion.CoverTrafficRatePerMinute)
	}
	if cfg.Chain.ConfirmationBlocks != 6 {
		t.Errorf("ConfirmationBlocks = %d, want 6", cfg.Chain.ConfirmationBlocks)
	}
	if cfg.Chain.ConfirmationTimeoutSeconds != 300*time.Second {
		t.Errorf("ConfirmationTimeoutSeconds = %v, want 300s", cfg.Chain.ConfirmationTimeoutSeconds)
	}
}

func TestDeliveryAndBridgeDefaults(t *testing.T) {
	cfg := &Config{
		Delivery: &DeliveryConfig{},
		Bridge:   &BridgeConfig{},
	}
	setDefaults(cfg)

	if cfg.Delivery.TimeoutSeconds != 1800*time.Second {
		t.Errorf("Delivery.TimeoutSeconds = %v, want 1800s", cfg.Delivery.TimeoutSeconds)
	}
	if cfg.Bridge.AtomicTimeoutSeconds != 600*time.Second {
		t.Errorf("Bridge.AtomicTimeoutSeconds = %v, want 600s", cfg.Bridge.AtomicTimeoutSeconds)
	}
}

func TestIdentityConfigDefaults(t *testing.T) {
	cfg := &Config{Identity: &IdentityConfig{}}
	setDefaults(cfg)

	if cfg.Identity.Method != "ed25519-hkdf" {
		t.Errorf("Identity.Method = %q, want ed25519-hkdf", cfg.Identity.Method)
	}
	if cfg.Identity.BurnerDefaultTTL != 24*time.Hour {
		t.Errorf("Identity.BurnerDefaultTTL = %v, want 24h", cfg.Identity.BurnerDefaultTTL)
	}
}
