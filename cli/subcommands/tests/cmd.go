// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package tests

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/foundriesio/fw-autotest/app"
	"github.com/foundriesio/fw-autotest/cli/subcommands"
	"github.com/foundriesio/fw-autotest/firmware"
	"github.com/foundriesio/fw-autotest/orchestrator"
	"github.com/foundriesio/fw-autotest/testcase"
)

const timeFormat = "2006-01-02 15:04:05"

var GenerateCmd = &cobra.Command{
	Use:   "generate <test-number>",
	Short: "Write the test case file of a test for the current build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid test number: %s", args[0])
		}
		a := subcommands.CtxGetApp(cmd.Context())
		tc, err := generate(cmd, a, number)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tc.FilePath)
		return nil
	},
}

var RunCmd = &cobra.Command{
	Use:   "run [test-number...]",
	Short: "Run tests in order, stopping at the first failure",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return errors.New("select tests to run or pass --all")
		}
		var numbers []int
		if !all {
			for _, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid test number: %s", arg)
				}
				numbers = append(numbers, n)
			}
		}
		return run(cmd, subcommands.CtxGetApp(cmd.Context()), numbers)
	},
}

var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded test results",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		runId, _ := cmd.Flags().GetString("run")
		return listHistory(cmd.OutOrStdout(), subcommands.CtxGetApp(cmd.Context()), limit, runId)
	},
}

func init() {
	RunCmd.Flags().Bool("all", false, "Run the whole catalog")
	HistoryCmd.Flags().Int("limit", 50, "Number of records to show")
	HistoryCmd.Flags().String("run", "", "Only show the records of this run id")
}

func generate(cmd *cobra.Command, a *app.App, number int) (*testcase.GeneratedTestCase, error) {
	selected, err := orchestrator.Select(a.Catalog, []int{number})
	if err != nil {
		return nil, err
	}
	var (
		scripted orchestrator.ScriptedTest
		fwUpdate bool
	)
	switch t := selected[0].(type) {
	case orchestrator.ScriptedTest:
		scripted = t
	case orchestrator.FirmwareUpdateTest:
		scripted, fwUpdate = t.ScriptedTest, true
	default:
		return nil, fmt.Errorf("test %d has no test case to generate", number)
	}

	g, err := a.Group(scripted.VersionGroup)
	if err != nil {
		return nil, err
	}
	version, err := a.Builds.CurrentVersion(cmd.Context(), g)
	if err != nil {
		return nil, err
	}
	gen := testcase.NewGenerator(a.Fs.Templates, a.Fs.Config, firmware.NewResolver(a.Fs.Deploy))
	if fwUpdate {
		return gen.GenerateFirmwareUpdate(cmd.Context(), scripted.TemplatePrefix, scripted.ExecPrefix, version)
	}
	return gen.Generate(cmd.Context(), scripted.TemplatePrefix, scripted.ExecPrefix, version)
}

func run(cmd *cobra.Command, a *app.App, numbers []int) error {
	selected, err := orchestrator.Select(a.Catalog, numbers)
	if err != nil {
		return err
	}
	queue, err := a.Queue()
	if err != nil {
		return err
	}
	summary, err := queue.Run(cmd.Context(), selected)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, summary)
	if !summary.Passed() {
		return errors.New("auto-test failed")
	}
	return nil
}

func printSummary(w io.Writer, s *orchestrator.Summary) {
	table := subcommands.NewTableWriter([]string{"TEST", "TITLE", "VERSION", "STATUS", "PASS", "FAIL", "DETAIL"})
	for _, r := range s.Results {
		table.AddRow(r.Number, r.Title, orDash(r.Version), r.Status, r.Pass, r.Fail, orDash(r.Detail))
	}
	table.Render(w)
	fmt.Fprintln(w)
	fmt.Fprint(w, s.Report)
	if s.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", s.Error)
	}
}

func listHistory(w io.Writer, a *app.App, limit int, runId string) error {
	h, err := a.History()
	if err != nil {
		return err
	} else if h == nil {
		return errors.New("no history database configured")
	}

	records, err := h.List(limit)
	if runId != "" {
		records, err = h.ListRun(runId)
	}
	if err != nil {
		return err
	}

	table := subcommands.NewTableWriter([]string{"RUN", "TEST", "NAME", "VERSION", "STATUS", "PASS", "FAIL", "COMPLETED"})
	for _, r := range records {
		table.AddRow(r.RunId, r.TestNumber, r.TestName, orDash(r.Version), r.Status, r.Pass, r.Fail,
			r.Completed.ToTime().Format(timeFormat))
	}
	table.Render(w)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
