// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/pack"
)

var infoFile string

// infoCmd prints a package header without touching any sub-key state.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe a package key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := config.Identity.authority(0, 0)
		if err != nil {
			return err
		}
		fd, err := os.Open(infoFile)
		if err != nil {
			return err
		}
		defer fd.Close()

		factory, err := pack.Open(fd, auth)
		if err != nil {
			return err
		}
		defer factory.Destroy()
		pkg := factory.Package()

		created := time.Unix(0, pkg.CreatedOn*100)
		fmt.Printf("package:     %s\n", infoFile)
		fmt.Printf("package id:  %s\n", hex.EncodeToString(pkg.Authority.PackageID[:]))
		fmt.Printf("created:     %s\n", created.Format(time.RFC3339))
		fmt.Printf("engine:      %s-%d/%s\n", pkg.Description.EngineType,
			pkg.Description.RoundCount, pkg.Description.CipherMode)
		fmt.Printf("key/iv/mac:  %d/%d/%d\n", pkg.Description.KeySize,
			pkg.Description.IvSize, pkg.Description.MacSize)
		fmt.Printf("access:      %s\n", factory.AccessScope())
		if pkg.HasPolicy(keys.PolicyNoNarrative) {
			return nil
		}

		unused, expired, locked, erased := 0, 0, 0, 0
		for _, sp := range pkg.SubkeyPolicy {
			switch {
			case sp&keys.SubkeyErased != 0:
				erased++
			case sp&keys.SubkeyLocked != 0:
				locked++
			case sp&keys.SubkeyExpired != 0:
				expired++
			default:
				unused++
			}
		}
		fmt.Printf("sub-keys:    %d total, %d unused, %d expired, %d locked, %d erased\n",
			pkg.SubkeyCount(), unused, expired, locked, erased)
		return nil
	},
}

func infoCmdInit() {
	infoCmd.Flags().StringVar(&infoFile, "file", "", "Package key file")
	_ = infoCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(infoCmd)
}
