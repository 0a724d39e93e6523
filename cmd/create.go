// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keyparcel/keyparcel/internal/db"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/pack"
	"github.com/keyparcel/keyparcel/suite"
	"github.com/keyparcel/keyparcel/volume"
)

var (
	createOut     string
	createSubkeys int
	createPolicy  []string
	createExpiry  int64
)

var policyNames = map[string]int64{
	"masterauth":       keys.PolicyMasterAuth,
	"packageauth":      keys.PolicyPackageAuth,
	"domainrestrict":   keys.PolicyDomainRestrict,
	"identityrestrict": keys.PolicyIdentityRestrict,
	"volatile":         keys.PolicyVolatile,
	"singleuse":        keys.PolicySingleUse,
	"postoverwrite":    keys.PolicyPostOverwrite,
	"noexport":         keys.PolicyNoExport,
	"nonarrative":      keys.PolicyNoNarrative,
}

func parsePolicy(names []string) (int64, error) {
	var policy int64
	for _, n := range names {
		bit, ok := policyNames[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown policy flag %q", n)
		}
		policy |= bit
	}
	return policy, nil
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create key files",
}

var createPackageCmd = &cobra.Command{
	Use:   "package",
	Short: "Create a key package",
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := parsePolicy(createPolicy)
		if err != nil {
			return err
		}
		auth, err := config.Identity.authority(policy, createExpiry)
		if err != nil {
			return err
		}
		desc, err := config.Cipher.description()
		if err != nil {
			return err
		}

		fd, err := os.OpenFile(createOut, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		defer fd.Close()

		pkg := pack.NewPackageKey(policy, auth, desc, createSubkeys)
		factory := pack.NewFactory(fd, auth)
		if err := factory.Create(pkg, suite.PrngSystem, suite.DigestSHA512); err != nil {
			os.Remove(createOut)
			return err
		}
		defer factory.Destroy()

		if err := recordKey(&db.KeyRecord{
			Path:        createOut,
			PackageID:   hex.EncodeToString(auth.PackageID[:]),
			Kind:        "package",
			Policy:      policy,
			SubkeyCount: createSubkeys,
			Engine:      desc.EngineType.String(),
		}); err != nil {
			return err
		}
		slog.Info("package created", "path", createOut, "subkeys", createSubkeys,
			"engine", desc.EngineType.String(), "mode", desc.CipherMode.String())
		return nil
	},
}

var createVolumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Create a volume key",
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := config.Cipher.description()
		if err != nil {
			return err
		}
		fd, err := os.OpenFile(createOut, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		defer fd.Close()

		factory := volume.NewFactory(fd)
		vk, err := factory.Create(desc, createSubkeys, suite.PrngSystem, suite.DigestSHA512)
		if err != nil {
			os.Remove(createOut)
			return err
		}
		defer vk.Destroy()

		if err := recordKey(&db.KeyRecord{
			Path:        createOut,
			Kind:        "volume",
			SubkeyCount: createSubkeys,
			Engine:      desc.EngineType.String(),
		}); err != nil {
			return err
		}
		slog.Info("volume key created", "path", createOut, "subkeys", createSubkeys)
		return nil
	},
}

var createCipherKeyCmd = &cobra.Command{
	Use:   "cipherkey",
	Short: "Create a simple cipher key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := config.Cipher.description()
		if err != nil {
			return err
		}
		factory, err := keys.NewFactory(suite.PrngSystem, suite.DigestSHA512)
		if err != nil {
			return err
		}
		ck, err := factory.CreateCipherKey(desc)
		if err != nil {
			return err
		}
		defer ck.Destroy()
		raw, err := ck.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(createOut, raw, 0o600); err != nil {
			return err
		}
		keys.Wipe(raw)
		if err := recordKey(&db.KeyRecord{
			Path: createOut, Kind: "cipher", SubkeyCount: 1,
			Engine: desc.EngineType.String(),
		}); err != nil {
			return err
		}
		slog.Info("cipher key created", "path", createOut,
			"key_id", hex.EncodeToString(ck.KeyID[:]))
		return nil
	},
}

var createSessionKeyCmd = &cobra.Command{
	Use:   "sessionkey",
	Short: "Create a packed session key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := config.Cipher.description()
		if err != nil {
			return err
		}
		factory, err := keys.NewFactory(suite.PrngSystem, suite.DigestSHA512)
		if err != nil {
			return err
		}
		sk, err := factory.CreateSessionKey(desc)
		if err != nil {
			return err
		}
		defer sk.Destroy()
		raw, err := sk.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(createOut, raw, 0o600); err != nil {
			return err
		}
		keys.Wipe(raw)
		if err := recordKey(&db.KeyRecord{
			Path: createOut, Kind: "session", SubkeyCount: 1,
			Engine: desc.EngineType.String(),
		}); err != nil {
			return err
		}
		slog.Info("session key created", "path", createOut)
		return nil
	},
}

// recordKey writes a registry row when a keystore is configured.
func recordKey(rec *db.KeyRecord) error {
	state, err := getState()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	return state.Record(rec)
}

func createCmdInit() {
	createCmd.PersistentFlags().StringVar(&createOut, "out", "", "Output key file path")
	createCmd.PersistentFlags().IntVar(&createSubkeys, "subkeys", 10, "Number of sub-keys")
	_ = createCmd.MarkPersistentFlagRequired("out")
	createPackageCmd.Flags().StringSliceVar(&createPolicy, "policy", nil,
		"Package policy flags (e.g. SingleUse,PostOverwrite)")
	createPackageCmd.Flags().Int64Var(&createExpiry, "expiry", 0,
		"Volatile expiration, 100-ns ticks since the Unix epoch")
	createCmd.AddCommand(createPackageCmd, createVolumeCmd, createCipherKeyCmd, createSessionKeyCmd)
	rootCmd.AddCommand(createCmd)
}
