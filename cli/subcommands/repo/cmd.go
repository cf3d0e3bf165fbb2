// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package repo holds the commands that move builds from the repository
// to the deploy directory.
package repo

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fw-autotest/app"
	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/cli/subcommands"
	"github.com/foundriesio/fw-autotest/firmware"
	"github.com/foundriesio/fw-autotest/storage"
)

var FetchCmd = &cobra.Command{
	Use:   "fetch [group...]",
	Short: "Download the newest build of each group",
	Long: `Ask the repository for the newest archive of each group, or of the
named groups, and download it when it is newer than the one last accepted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetch(cmd, subcommands.CtxGetApp(cmd.Context()), args)
	},
}

var UnpackCmd = &cobra.Command{
	Use:   "unpack [group...]",
	Short: "Extract the accepted archive of each group",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := subcommands.CtxGetApp(cmd.Context())
		groups, err := a.SelectGroups(args)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if err := a.Builds.Unpack(cmd.Context(), g); err != nil {
				return err
			}
		}
		return nil
	},
}

var DeployCmd = &cobra.Command{
	Use:   "deploy [group...]",
	Short: "Copy unpacked builds into the deploy directory",
	Long: `Remove the firmware binaries of the previous build from the deploy
directory, then copy each group's unpacked build over it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := subcommands.CtxGetApp(cmd.Context())
		groups, err := a.SelectGroups(args)
		if err != nil {
			return err
		}
		stale := firmware.StalePatterns()
		for _, g := range groups {
			if err := a.Builds.Deploy(cmd.Context(), g, stale...); err != nil {
				return err
			}
		}
		return nil
	},
}

var MarkerCmd = &cobra.Command{
	Use:   "marker <group>",
	Short: "Show the build last accepted for a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := subcommands.CtxGetApp(cmd.Context())
		g, err := a.Group(args[0])
		if err != nil {
			return err
		}
		return showMarker(cmd.OutOrStdout(), a.Builds, g)
	},
}

func fetch(cmd *cobra.Command, a *app.App, names []string) error {
	groups, err := a.SelectGroups(names)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	table := subcommands.NewTableWriter([]string{"GROUP", "RESULT", "ARCHIVE"})
	var failed error
	for _, g := range groups {
		rec, err := a.Builds.FetchLatest(cmd.Context(), g)
		switch {
		case err == nil:
			table.AddRow(g.Name, "downloaded", rec.ArchiveName)
		case errors.Is(err, builds.ErrNotNewer):
			current, _ := a.Builds.Marker(g)
			table.AddRow(g.Name, "up to date", current)
		case errors.Is(err, storage.ErrLocked):
			table.AddRow(g.Name, "busy", "-")
		default:
			table.AddRow(g.Name, "failed", err.Error())
			failed = errors.Join(failed, fmt.Errorf("%s: %w", g.Name, err))
		}
	}
	table.Render(out)
	return failed
}

func showMarker(w io.Writer, client *builds.Client, g builds.Group) error {
	archive, err := client.Marker(g)
	if err != nil {
		return err
	}
	if archive == "" {
		fmt.Fprintf(w, "No build accepted yet for %s\n", g.Name)
		return nil
	}
	fmt.Fprintf(w, "Group:    %s\n", g.Name)
	fmt.Fprintf(w, "Path:     %s\n", g.Path)
	fmt.Fprintf(w, "Archive:  %s\n", archive)
	if version, err := builds.FindVersion(archive, g.VersionIndex); err == nil {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	return nil
}
