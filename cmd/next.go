// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/pack"
)

var (
	nextPackage string
	nextOut     string
)

// nextCmd consumes the next unused sub-key from a package and writes it out
// as a cipher-key envelope ready for an encryption run.
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Consume the next unused sub-key from a package",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := config.Identity.authority(0, 0)
		if err != nil {
			return err
		}
		fd, err := os.OpenFile(nextPackage, os.O_RDWR, 0)
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

		desc, params, extKey, keyID, err := factory.NextKey()
		if err != nil {
			return err
		}
		defer params.Destroy()

		ck := &keys.CipherKey{Description: *desc, KeyID: keyID, ExtensionKey: extKey, Params: params}
		raw, err := ck.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(nextOut, raw, 0o600); err != nil {
			return err
		}
		keys.Wipe(raw)
		slog.Info("sub-key consumed", "key_id", hex.EncodeToString(keyID[:]), "out", nextOut)
		return nil
	},
}

func nextCmdInit() {
	nextCmd.Flags().StringVar(&nextPackage, "package", "", "Package key file")
	nextCmd.Flags().StringVar(&nextOut, "out", "", "Output cipher-key file")
	_ = nextCmd.MarkFlagRequired("package")
	_ = nextCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(nextCmd)
}
