// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"github.com/keyparcel/keyparcel/internal/db"
)

var (
	cfgFile  string
	debug    bool
	logLevel slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "keyparcel",
	Short: "Key package and volume encryption tool",
	Long: `keyparcel creates and consumes keyed packages: pools of single-use
	sub-keys governed by an authority policy, per-file volume keys for bulk
	directory encryption, and the simple cipher and session key envelopes.

	Identity and keystore settings come from the configuration file; every
	command operates on the binary key file formats directly.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config %s: %w", cfgFile, err)
			}
		}
		return rootCmdLoadConfig()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))
	rootCmdInit()
	createCmdInit()
	nextCmdInit()
	extractCmdInit()
	eraseCmdInit()
	infoCmdInit()
	volumeCmdInit()
	keystoreCmdInit()
}

func rootCmdInit() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Print debug contents")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// Initialize configuration from viper. Called by PersistentPreRunE after
// the configuration file, if any, is loaded.
func rootCmdLoadConfig() error {
	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	return loadConfig()
}

// getState opens the keystore registry named by the configuration, or
// returns nil when no keystore is configured.
func getState() (*db.State, error) {
	if config.Keystore.DSN == "" {
		return nil, nil
	}
	return config.Keystore.getState()
}
