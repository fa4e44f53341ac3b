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

// ValidationError reports one configuration problem. Level "error"
// fails Load; "warning" is surfaced but does not block startup.
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// ValidateConfiguration checks cfg for values Load should refuse to
// start with, plus non-fatal warnings about unusual settings.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Blockchain != nil {
		if err := cfg.Blockchain.Validate(); err != nil {
			errs = append(errs, ValidationError{Field: "blockchain", Message: err.Error(), Level: "error"})
		}
	}

	if cfg.Peer != nil && cfg.Peer.MaxPeers <= 0 {
		errs = append(errs, ValidationError{Field: "peer.max_peers", Message: "must be positive", Level: "error"})
	}

	if cfg.DHT != nil {
		if cfg.DHT.K <= 0 {
			errs = append(errs, ValidationError{Field: "dht.dht_k", Message: "must be positive", Level: "error"})
		}
		if cfg.DHT.Alpha <= 0 {
			errs = append(errs, ValidationError{Field: "dht.dht_alpha", Message: "must be positive", Level: "error"})
		}
		if cfg.DHT.Alpha > cfg.DHT.K {
			errs = append(errs, ValidationError{Field: "dht.dht_alpha", Message: "alpha larger than k reduces Kademlia lookup parallelism benefit", Level: "warning"})
		}
	}

	if cfg.Onion != nil && cfg.Onion.CircuitLength < 2 {
		errs = append(errs, ValidationError{Field: "onion.circuit_length", Message: "fewer than two hops provides no sender anonymity", Level: "error"})
	}

	if cfg.Chain != nil && cfg.Chain.ConfirmationBlocks <= 0 {
		errs = append(errs, ValidationError{Field: "chain.confirmation_blocks", Message: "must be positive", Level: "error"})
	}

	if cfg.Session != nil && cfg.Session.RotationMessages == 0 {
		errs = append(errs, ValidationError{Field: "session.rotation_messages", Message: "traffic keys never rotate by message count", Level: "warning"})
	}

	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "", "debug", "info", "warn", "error":
		default:
			errs = append(errs, ValidationError{Field: "logging.level", Message: "unrecognized level " + cfg.Logging.Level, Level: "warning"})
		}
	}

	return errs
}
