// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package executor

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fw-autotest/context"
)

func script(t *testing.T, dir, body string) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	require.Nil(t, os.WriteFile(filepath.Join(dir, "FwTestApp"), []byte("#!/bin/sh\n"+body), 0o755))
}

func TestHeadlessRun(t *testing.T) {
	dir := t.TempDir()
	script(t, dir, "echo \"$@\" > args.txt\n")

	outcome, err := NewHeadless("FwTestApp", dir).Run(context.Background(), "Connect_1.0.0")
	require.Nil(t, err)
	require.Equal(t, 0, outcome.ExitCode)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.Nil(t, err)
	require.Equal(t, "-t Connect_1.0.0 --headless\n", string(args))
}

func TestHeadlessExitCode(t *testing.T) {
	dir := t.TempDir()
	script(t, dir, "echo failing\nexit 3\n")

	outcome, err := NewHeadless("FwTestApp", dir).Run(context.Background(), "Connect_1.0.0")
	var exitErr ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.ExitCode)
	require.Equal(t, 3, outcome.ExitCode)
}

func TestHeadlessMissingBinary(t *testing.T) {
	_, err := NewHeadless("FwTestApp", t.TempDir()).Run(context.Background(), "Connect_1.0.0")
	require.NotNil(t, err)
	var exitErr ExitError
	require.False(t, errors.As(err, &exitErr))
}

func TestHeadlessLongOutputLine(t *testing.T) {
	dir := t.TempDir()
	script(t, dir, "head -c 102400 /dev/zero | tr '\\0' a\necho\nhead -c 204800 /dev/zero | tr '\\0' b\nexit 0\n")

	done := make(chan error, 1)
	go func() {
		_, err := NewHeadless("FwTestApp", dir).Run(context.Background(), "Connect_1.0.0")
		done <- err
	}()
	select {
	case err := <-done:
		require.Nil(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("headless run did not complete")
	}
}

func TestLineLogger(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := &lineLogger{log: log}

	n, err := l.Write([]byte("first\nsec"))
	require.Nil(t, err)
	require.Equal(t, 9, n)
	_, err = l.Write([]byte("ond\n"))
	require.Nil(t, err)
	_, err = l.Write([]byte(strings.Repeat("x", maxLine+10)))
	require.Nil(t, err)
	l.flush()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], `"line":"first"`)
	require.Contains(t, lines[1], `"line":"second"`)
	require.Contains(t, lines[2], strings.Repeat("x", maxLine+10))
}
