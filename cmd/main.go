// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/foundriesio/fw-autotest/config"
)

type CommonArgs struct {
	Config    string `arg:"env:AUTOTEST_CONFIG" help:"Configuration file, yaml or toml"`
	Workspace string `arg:"env:AUTOTEST_WORKSPACE" help:"Override the configured workspace directory"`

	Serve *ServeCmd `arg:"subcommand:serve" help:"Run the auto-test daemon"`
}

func (c CommonArgs) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.Workspace != "" {
		cfg.Workspace = c.Workspace
	}
	return cfg, nil
}

func main() {
	args := CommonArgs{}
	p := arg.MustParse(&args)

	var err error
	switch {
	case args.Serve != nil:
		err = args.Serve.Run(args)
	default:
		p.Fail("missing required subcommand")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
