// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package results

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fw-autotest/context"
)

func writeLog(t *testing.T, dir, name, content string) {
	require.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCollectVersions(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "GetVersions_2.7.1_20240101_0900.log", `{"tests": [
		{"cmdStr": "version(firmware,main,)", "logStr": "firmwareVersion = 1.0.0"}
	]}`)
	writeLog(t, dir, "GetVersions_2.7.1_20240102_0900.log", `{"tests": [
		{"cmdStr": "version(firmware,main,)", "logStr": "ok: firmwareVersion = 3.1.0"},
		{"cmdStr": "version(firmware,camera,)", "logStr": "firmwareVersion = 2.0.14"},
		{"cmdStr": "version(firmware,led,)", "logStr": "no version here"},
		{"cmdStr": "reboot()", "logStr": "firmwareVersion = 9.9.9"}
	]}`)

	snap := &InstrumentSnapshot{Led: "0.1"}
	col, err := NewAggregator(dir).Collect(context.Background(), "GetVersions_2.7.1", snap)
	require.Nil(t, err)
	require.Equal(t, filepath.Join(dir, "GetVersions_2.7.1_20240102_0900.log"), col.LogPath)
	require.True(t, col.Tests)
	require.Equal(t, 0, col.Pass)
	require.Equal(t, 0, col.Fail)
	require.Equal(t, "3.1.0", snap.Main)
	require.Equal(t, "2.0.14", snap.Camera)
	require.Equal(t, "0.1", snap.Led)
	require.Equal(t, "", snap.PowerMonitor)
}

func TestCollectCounts(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "Connect_1.0.0_1.log", `{"tests": [
		{"cmdStr": "connect()", "logStr": "", "result": "PASS"},
		{"cmdStr": "ping()", "logStr": "", "result": "failed"},
		{"cmdStr": "ping()", "logStr": "", "result": "Passed"},
		{"cmdStr": "note()", "logStr": ""}
	]}`)
	col, err := NewAggregator(dir).Collect(context.Background(), "Connect_1.0.0", nil)
	require.Nil(t, err)
	require.Equal(t, 2, col.Pass)
	require.Equal(t, 1, col.Fail)
}

func TestCollectSince(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "Connect_1.0.0_1.log", `{"tests": [{"cmdStr": "connect()", "result": "PASS"}]}`)
	agg := NewAggregator(dir)

	_, err := agg.CollectSince(context.Background(), "Connect_1.0.0", time.Now().Add(time.Hour), nil)
	require.True(t, errors.Is(err, ErrNoLog))

	col, err := agg.CollectSince(context.Background(), "Connect_1.0.0", time.Now().Add(-time.Hour), nil)
	require.Nil(t, err)
	require.Equal(t, 1, col.Pass)
}

func TestCollectMissingTests(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "Connect_1.log", `{"summary": "nothing ran"}`)
	col, err := NewAggregator(dir).Collect(context.Background(), "Connect_1", &InstrumentSnapshot{})
	require.Nil(t, err)
	require.False(t, col.Tests)
	require.Equal(t, 0, col.Pass+col.Fail)
}

func TestCollectFailures(t *testing.T) {
	dir := t.TempDir()
	agg := NewAggregator(dir)
	_, err := agg.Collect(context.Background(), "Connect_1", nil)
	require.True(t, errors.Is(err, ErrNoLog))

	writeLog(t, dir, "Connect_1.log", `{"tests": [`)
	_, err = agg.Collect(context.Background(), "Connect_1", nil)
	require.True(t, errors.Is(err, ErrParse))

	writeLog(t, dir, "Connect_1.log", `{"tests": "all good"}`)
	_, err = agg.Collect(context.Background(), "Connect_1", nil)
	require.True(t, errors.Is(err, ErrParse))
}

func TestCounters(t *testing.T) {
	c := NewCounters()
	_, ok := c.Get("connect")
	require.False(t, ok)

	c.Add("connect", 1, 0)
	c.Add("firmware", 0, 2)
	c.Add("connect", 2, 1)
	counter, ok := c.Get("connect")
	require.True(t, ok)
	require.Equal(t, Counter{Pass: 3, Fail: 1}, counter)
	require.Equal(t, []string{"connect", "firmware"}, c.Categories())
	require.Equal(t, map[string]Counter{"connect": {3, 1}, "firmware": {0, 2}}, c.Snapshot())

	var buf bytes.Buffer
	require.Nil(t, c.Render(&buf))
	require.Equal(t, "Connect - Pass: 3 - Fail: 1\nFirmware - Pass: 0 - Fail: 2\n", buf.String())
}
