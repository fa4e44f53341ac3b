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

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chikuno/dchat/identity"
)

func newKeygenCmd() *cobra.Command {
	var burner bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a master identity and its default messaging device key",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				return fmt.Errorf("read random seed: %w", err)
			}

			var root *identity.Root
			var err error
			if burner {
				root, err = identity.NewBurner(seed)
			} else {
				root, err = identity.NewRoot(seed)
			}
			if err != nil {
				return fmt.Errorf("derive identity: %w", err)
			}

			devicePath := identity.Path{Purpose: identity.PurposeMessaging}
			deviceKey := root.DeriveDeviceKey(devicePath)
			devicePub := deviceKey.Public().(ed25519.PublicKey)

			fmt.Printf("user_id:        %s\n", root.UserID())
			fmt.Printf("root_pubkey:    %s\n", hex.EncodeToString(root.RootPublicKey()))
			fmt.Printf("device_pubkey:  %s\n", hex.EncodeToString(devicePub))
			return nil
		},
	}

	cmd.Flags().BoolVar(&burner, "burner", false, "generate a disposable burner identity instead of a master identity")
	return cmd
}
