// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/pack"
)

var (
	extractPackage string
	extractKeyID   string
	extractOut     string
)

func errPermission() error {
	return cryptoerr.New("cmd", cryptoerr.ErrAccessDenied, "")
}

// extractCmd pulls a sub-key out of a package by id, honoring the package's
// single-use and post-overwrite policies.
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a sub-key from a package by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(extractKeyID)
		if err != nil || len(raw) != 16 {
			return fmt.Errorf("--key-id must be 32 hex characters")
		}
		var keyID [16]byte
		copy(keyID[:], raw)

		auth, err := config.Identity.authority(0, 0)
		if err != nil {
			return err
		}
		fd, err := os.OpenFile(extractPackage, os.O_RDWR, 0)
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

		desc, params, extKey, err := factory.Extract(keyID)
		if err != nil {
			return err
		}
		defer params.Destroy()

		ck := &keys.CipherKey{Description: *desc, KeyID: keyID, ExtensionKey: extKey, Params: params}
		out, err := ck.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(extractOut, out, 0o600); err != nil {
			return err
		}
		keys.Wipe(out)
		slog.Info("sub-key extracted", "key_id", extractKeyID, "out", extractOut,
			"scope", factory.AccessScope().String())
		return nil
	},
}

func extractCmdInit() {
	extractCmd.Flags().StringVar(&extractPackage, "package", "", "Package key file")
	extractCmd.Flags().StringVar(&extractKeyID, "key-id", "", "Sub-key id, hex")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "Output cipher-key file")
	_ = extractCmd.MarkFlagRequired("package")
	_ = extractCmd.MarkFlagRequired("key-id")
	_ = extractCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(extractCmd)
}
