// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package instrument

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fw-autotest/cli/subcommands"
	"github.com/foundriesio/fw-autotest/results"
)

var IpCmd = &cobra.Command{
	Use:   "ip",
	Short: "Show the IP address of the instrument",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := subcommands.CtxGetApp(cmd.Context())
		if err := a.Instrument.Find(cmd.Context()); err != nil {
			return err
		}
		ip, err := a.Instrument.ReadIP(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ip)
		return nil
	},
}

var VersionsCmd = &cobra.Command{
	Use:   "versions <case-name>",
	Short: "Show the firmware versions reported by the last run of a test case",
	Long: `Read the newest result log of a version query test case and print the
firmware versions the instrument reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := subcommands.CtxGetApp(cmd.Context())
		var snap results.InstrumentSnapshot
		if err := results.NewAggregator(a.Fs.Log).Versions(cmd.Context(), args[0], &snap); err != nil {
			return err
		}
		table := subcommands.NewTableWriter([]string{"FIRMWARE", "VERSION"})
		table.AddRow("main", snap.Main)
		table.AddRow("camera", snap.Camera)
		table.AddRow("led", snap.Led)
		table.AddRow("power monitor", snap.PowerMonitor)
		table.Render(cmd.OutOrStdout())
		return nil
	},
}
