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

// Command dchat is a manual-testing CLI for the dchat protocol stack,
// in the shape of the sage-crypto/sage-did command trees: each
// subcommand wires a handful of library packages together for a single
// operation and prints its result. It is not a long-running node.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chikuno/dchat/config"
)

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintln(os.Stderr, "dchat:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:   "dchat",
		Short: "Manual-testing CLI for the dchat protocol stack",
	}

	root.AddCommand(
		newKeygenCmd(),
		newSendCmd(),
		newPeersCmd(),
		newDHTLookupCmd(),
		newBridgeStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dchat:", err)
		os.Exit(1)
	}
}
