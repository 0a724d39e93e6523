// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/keyparcel/keyparcel/volume"
)

var volumeKeyFile string

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Encrypt or decrypt a set of files under a volume key",
}

var volumeEncryptCmd = &cobra.Command{
	Use:   "encrypt file...",
	Short: "Encrypt files, binding each to a fresh sub-key",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVolume(true, args)
	},
}

var volumeDecryptCmd = &cobra.Command{
	Use:   "decrypt file...",
	Short: "Decrypt files previously bound to the volume",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVolume(false, args)
	},
}

func runVolume(encryption bool, paths []string) error {
	fd, err := os.OpenFile(volumeKeyFile, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer fd.Close()

	factory := volume.NewFactory(fd)
	vk, err := factory.Load()
	if err != nil {
		return err
	}
	defer vk.Destroy()

	return volume.NewCipher(vk, factory).Transform(encryption, paths)
}

func volumeCmdInit() {
	volumeCmd.PersistentFlags().StringVar(&volumeKeyFile, "key", "", "Volume key file")
	_ = volumeCmd.MarkPersistentFlagRequired("key")
	volumeCmd.AddCommand(volumeEncryptCmd, volumeDecryptCmd)
	rootCmd.AddCommand(volumeCmd)
}
