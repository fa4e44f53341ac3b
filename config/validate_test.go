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

import "testing"

func TestValidateConfigurationFlagsBadOnionCircuitLength(t *testing.T) {
	cfg := &Config{Onion: &OnionConfig{CircuitLength: 1}}
	errs := ValidateConfiguration(cfg)

	found := false
	for _, e := range errs {
		if e.Field == "onion.circuit_length" && e.Level == "error" {
			found = true
		}
	}
	if !found {
		t.Error("expected an error-level finding for onion.circuit_length = 1")
	}
}

func TestValidateConfigurationWarnsWhenAlphaExceedsK(t *testing.T) {
	cfg := &Config{DHT: &DHTConfig{K: 5, Alpha: 10}}
	errs := ValidateConfiguration(cfg)

	found := false
	for _, e := range errs {
		if e.Field == "dht.dht_alpha" && e.Level == "warning" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning-level finding when dht_alpha > dht_k")
	}
}

func TestValidateConfigurationPassesSaneDefaults(t *testing.T) {
	cfg := &Config{
		Peer:  &PeerConfig{MaxPeers: 100},
		DHT:   &DHTConfig{K: 20, Alpha: 3},
		Onion: &OnionConfig{CircuitLength: 3},
		Chain: &ChainConfirmationConfig{ConfirmationBlocks: 6},
	}
	errs := ValidateConfiguration(cfg)

	for _, e := range errs {
		if e.Level == "error" {
			t.Errorf("unexpected error-level finding: %s: %s", e.Field, e.Message)
		}
	}
}
