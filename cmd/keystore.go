// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Inspect the keystore registry",
}

var keystoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered key files",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := getState()
		if err != nil {
			return err
		}
		if state == nil {
			return errors.New("no keystore configured (set keystore.type and keystore.dsn)")
		}
		recs, err := state.List()
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("%-8s %-40s subkeys=%-6d engine=%-8s %s\n",
				r.Kind, r.Path, r.SubkeyCount, r.Engine,
				r.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func keystoreCmdInit() {
	keystoreCmd.AddCommand(keystoreListCmd)
	rootCmd.AddCommand(keystoreCmd)
}
