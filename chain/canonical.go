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

package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON renders a Tx as the ordered, whitespace-free UTF-8
// encoding spec.md §3 requires: fields in declaration order, no object
// reordering (json.Marshal on a slice of ordered pairs, not a map).
func CanonicalJSON(tx Tx) ([]byte, error) {
	type pair struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	doc := struct {
		Kind   TxKind `json:"kind"`
		Fields []pair `json:"fields"`
	}{Kind: tx.Kind}
	for _, f := range tx.Fields {
		doc.Fields = append(doc.Fields, pair{Name: f.Name, Value: f.Value})
	}
	return json.Marshal(doc)
}

// TxID computes the canonical tx_id: the hex-encoded SHA-256 of the
// transaction's canonical JSON serialization.
func TxID(tx Tx) (string, error) {
	b, err := CanonicalJSON(tx)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
