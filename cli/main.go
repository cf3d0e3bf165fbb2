// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fw-autotest/app"
	"github.com/foundriesio/fw-autotest/cli/subcommands"
	"github.com/foundriesio/fw-autotest/cli/subcommands/instrument"
	"github.com/foundriesio/fw-autotest/cli/subcommands/repo"
	"github.com/foundriesio/fw-autotest/cli/subcommands/tests"
	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

var rootCmd = &cobra.Command{
	Use:   "autotest",
	Short: "Firmware auto-test of the instrument",
	Long: `autotest fetches the newest firmware builds, stages them next to the
headless test application and runs the configured test catalog against the
instrument.

Without --config the built-in defaults are used with the current directory
as workspace.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err := context.InitLogger(cfg.LogLevel, os.Stderr)
		if err != nil {
			return err
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		ctx := context.CtxWithLog(cmd.Context(), logger)
		cmd.SetContext(subcommands.CtxWithApp(ctx, a))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return subcommands.CtxGetApp(cmd.Context()).Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv("AUTOTEST_CONFIG"), "Configuration file, yaml or toml")
	rootCmd.AddCommand(
		repo.FetchCmd,
		repo.UnpackCmd,
		repo.DeployCmd,
		repo.MarkerCmd,
		tests.GenerateCmd,
		tests.RunCmd,
		tests.HistoryCmd,
		instrument.IpCmd,
		instrument.VersionsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
