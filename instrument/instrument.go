// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package instrument reaches the instrument under test.
package instrument

import (
	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

// Controller is everything the test run needs from the instrument.
type Controller interface {
	// Find checks the instrument is reachable.
	Find(ctx context.Context) error
	ReadIP(ctx context.Context) (string, error)
	// SwitchToTestApp makes the on-device test application the default one.
	SwitchToTestApp(ctx context.Context) error
	// RunTestApp launches the on-device test application.
	RunTestApp(ctx context.Context) error
}

// New returns an SSH controller, or a Noop one when no host is configured.
func New(cfg config.Instrument) Controller {
	if cfg.Host == "" {
		return Noop{}
	}
	return NewSSH(cfg)
}

// Noop stands in for an instrument nobody configured.
type Noop struct{}

func (Noop) Find(ctx context.Context) error {
	context.CtxGetLog(ctx).Debug("No instrument configured")
	return nil
}

func (Noop) ReadIP(context.Context) (string, error) {
	return "", nil
}

func (Noop) SwitchToTestApp(context.Context) error {
	return nil
}

func (Noop) RunTestApp(ctx context.Context) error {
	context.CtxGetLog(ctx).Debug("No instrument configured, test app not launched")
	return nil
}
