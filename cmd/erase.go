// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyparcel/keyparcel/pack"
)

var (
	erasePackage string
	eraseKeyID   string
)

// eraseCmd destroys a sub-key in place without extracting it, for packages
// whose creator wants the material unreadable ahead of any decryption use.
var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase a sub-key in place without extracting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(eraseKeyID)
		if err != nil || len(raw) != 16 {
			return fmt.Errorf("--key-id must be 32 hex characters")
		}
		var keyID [16]byte
		copy(keyID[:], raw)

		auth, err := config.Identity.authority(0, 0)
		if err != nil {
			return err
		}
		fd, err := os.OpenFile(erasePackage, os.O_RDWR, 0)
		if err != nil {
			return err
		}
		defer fd.Close()

		factory, err := pack.Open(fd, auth)
		if err != nil {
			return err
		}
		defer factory.Destroy()
		if factory.AccessScope() == pack.NoAccess {
			slog.Error("package authentication failed", "reason", factory.LastError())
			return errPermission()
		}

		if err := factory.Erase(keyID); err != nil {
			return err
		}
		slog.Info("sub-key erased", "key_id", eraseKeyID, "package", erasePackage)
		return nil
	},
}

func eraseCmdInit() {
	eraseCmd.Flags().StringVar(&erasePackage, "package", "", "Package key file")
	eraseCmd.Flags().StringVar(&eraseKeyID, "key-id", "", "Sub-key id, hex")
	_ = eraseCmd.MarkFlagRequired("package")
	_ = eraseCmd.MarkFlagRequired("key-id")
	rootCmd.AddCommand(eraseCmd)
}
