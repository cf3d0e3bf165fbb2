// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package executor drives the headless test application.
package executor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/foundriesio/fw-autotest/context"
)

// ExitError reports a non-zero exit of the test application. It is advisory:
// pass and fail come from the result log, not from the exit code.
type ExitError struct {
	Case     string
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Case, e.ExitCode)
}

type Outcome struct {
	ExitCode int
	Duration time.Duration
}

// Headless runs "<binary> -t <case> --headless" from the deploy directory.
type Headless struct {
	binary string
	dir    string
}

// NewHeadless resolves a relative binary against dir.
func NewHeadless(binary, dir string) *Headless {
	if !filepath.IsAbs(binary) {
		binary = filepath.Join(dir, binary)
	}
	return &Headless{binary: binary, dir: dir}
}

// Run starts the test application and waits for it. The process is not tied
// to ctx: once started a test case always runs to completion. Output lines
// are forwarded to the context's logger.
func (h Headless) Run(ctx context.Context, caseName string) (*Outcome, error) {
	log := context.CtxGetLog(ctx).With("case", caseName)
	start := time.Now()

	cmd := exec.Command(h.binary, "-t", caseName, "--headless")
	cmd.Dir = h.dir
	output := &lineLogger{log: log}
	cmd.Stdout = output
	cmd.Stderr = output

	log.Info("Starting headless test run", "cmd", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start %s: %w", h.binary, err)
	}

	outcome := &Outcome{}
	err := cmd.Wait()
	output.flush()
	outcome.Duration = time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return outcome, fmt.Errorf("unable to run %s: %w", caseName, err)
		}
		outcome.ExitCode = exitErr.ExitCode()
		log.Warn("Headless test run exited abnormally", "exit_code", outcome.ExitCode, "duration", outcome.Duration)
		return outcome, ExitError{Case: caseName, ExitCode: outcome.ExitCode}
	}
	log.Info("Headless test run completed", "duration", outcome.Duration)
	return outcome, nil
}

// maxLine bounds how much of a single output line is buffered before it is
// logged in pieces.
const maxLine = 64 * 1024

// lineLogger forwards process output to a logger one line at a time. It never
// blocks the writer, however long a line gets.
type lineLogger struct {
	log *slog.Logger
	buf bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			l.buf.Write(p)
			if l.buf.Len() >= maxLine {
				l.flush()
			}
			break
		}
		l.buf.Write(p[:i])
		l.flush()
		p = p[i+1:]
	}
	return n, nil
}

func (l *lineLogger) flush() {
	if l.buf.Len() == 0 {
		return
	}
	l.log.Debug("executor", "line", l.buf.String())
	l.buf.Reset()
}
