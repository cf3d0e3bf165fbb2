// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/executor"
	"github.com/foundriesio/fw-autotest/storage"
	"github.com/foundriesio/fw-autotest/storage/history"
	"github.com/foundriesio/fw-autotest/testcase"
	"github.com/foundriesio/fw-autotest/ticket"
)

const (
	passLog = `{"tests": [{"cmdStr": "connect()", "logStr": "", "result": "PASS"},
		{"cmdStr": "version(firmware,main,)", "logStr": "firmwareVersion = 3.1.0", "result": "PASS"}]}`
	failLog = `{"tests": [{"cmdStr": "connect()", "logStr": "timeout", "result": "FAIL"}]}`
)

type fakeVersions struct {
	version string
	err     error
}

func (f fakeVersions) CurrentVersion(context.Context, builds.Group) (string, error) {
	return f.version, f.err
}

type fakeExecutor struct {
	logDir   string
	logs     map[string]string
	exitCode int
	err      error
	hook     func()

	lock  sync.Mutex
	calls []string
}

func (f *fakeExecutor) Run(_ context.Context, caseName string) (*executor.Outcome, error) {
	f.lock.Lock()
	f.calls = append(f.calls, caseName)
	f.lock.Unlock()
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	if content, ok := f.logs[caseName]; ok {
		if err := os.WriteFile(filepath.Join(f.logDir, caseName+"_20240102_0900.log"), []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	outcome := &executor.Outcome{ExitCode: f.exitCode}
	if f.exitCode != 0 {
		return outcome, executor.ExitError{Case: caseName, ExitCode: f.exitCode}
	}
	return outcome, nil
}

func (f *fakeExecutor) ran() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeInstrument struct {
	findErr  error
	launches int
}

func (f *fakeInstrument) Find(context.Context) error             { return f.findErr }
func (f *fakeInstrument) ReadIP(context.Context) (string, error) { return "10.0.0.7", nil }
func (f *fakeInstrument) SwitchToTestApp(context.Context) error  { return nil }
func (f *fakeInstrument) RunTestApp(context.Context) error {
	f.launches++
	return nil
}

type fakeReporter struct {
	err     error
	tickets []ticket.Ticket
}

func (f *fakeReporter) Submit(_ context.Context, t ticket.Ticket) error {
	f.tickets = append(f.tickets, t)
	return f.err
}

type fakeRecorder struct {
	records []history.Record
}

func (f *fakeRecorder) Add(r history.Record) error {
	f.records = append(f.records, r)
	return nil
}

type fixture struct {
	fs       *storage.FsHandle
	orch     *Orchestrator
	exec     *fakeExecutor
	inst     *fakeInstrument
	reporter *fakeReporter
	recorder *fakeRecorder
	sleeps   []time.Duration
}

func newFixture(t *testing.T) *fixture {
	cfg := config.Defaults()
	cfg.Workspace = t.TempDir()
	fs := storage.NewFs(&cfg)
	require.Nil(t, fs.EnsureDirs())
	require.Nil(t, os.MkdirAll(fs.Templates, 0o755))
	require.Nil(t, os.WriteFile(filepath.Join(fs.Templates, "connect_tmpl.tst"), []byte("run connect_tmpl"), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(fs.Templates, "fw_tmpl.tst"), []byte("run fw_tmpl Instr_MainBoard_FW.bin"), 0o644))

	f := &fixture{
		fs:       fs,
		exec:     &fakeExecutor{logDir: fs.Log, logs: map[string]string{}},
		inst:     &fakeInstrument{},
		reporter: &fakeReporter{},
		recorder: &fakeRecorder{},
	}
	orch, err := New(&cfg, fs, Deps{
		Builds:     fakeVersions{version: "1.2.3"},
		Executor:   f.exec,
		Instrument: f.inst,
		Reporter:   f.reporter,
		Recorder:   f.recorder,
	})
	require.Nil(t, err)
	orch.sleep = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }
	f.orch = orch
	return f
}

func scripted(number int, category string, postDelay time.Duration) ScriptedTest {
	return ScriptedTest{
		Meta:           Meta{Number: number, Title: "Scripted", Category: category},
		TemplatePrefix: "connect_tmpl",
		ExecPrefix:     "Connect_",
		PostDelay:      postDelay,
		VersionGroup:   "windows",
	}
}

func TestRunScriptedPassed(t *testing.T) {
	f := newFixture(t)
	f.exec.logs["Connect_1.2.3"] = passLog
	state := NewState("run-1")

	res, err := f.orch.Run(context.Background(), scripted(2, "connect", 10*time.Second), state)
	require.Nil(t, err)
	require.Equal(t, Passed, res.Status)
	require.Equal(t, "Connect_1.2.3", res.CaseName)
	require.Equal(t, "1.2.3", res.Version)
	require.Equal(t, 2, res.Pass)
	require.True(t, res.PostRun)
	require.Equal(t, 1, f.inst.launches)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 60 * time.Second}, f.sleeps)
	require.Equal(t, "3.1.0", state.Snapshot.Main)

	counter, ok := state.Counters.Get("connect")
	require.True(t, ok)
	require.Equal(t, 2, counter.Pass)

	content, err := os.ReadFile(filepath.Join(f.fs.Config, "Connect_1.2.3.tst"))
	require.Nil(t, err)
	require.Equal(t, "run Connect_1.2.3", string(content))

	require.Len(t, f.recorder.records, 1)
	require.Equal(t, "run-1", f.recorder.records[0].RunId)
	require.Equal(t, "passed", f.recorder.records[0].Status)
}

func TestRunScriptedGateFailureSkipsPostRun(t *testing.T) {
	f := newFixture(t)
	f.exec.logs["Connect_1.2.3"] = failLog
	state := NewState("run-1")

	res, err := f.orch.Run(context.Background(), scripted(2, "connect", 10*time.Second), state)
	require.Nil(t, err)
	require.Equal(t, Failed, res.Status)
	require.False(t, res.PostRun)
	require.Equal(t, 0, f.inst.launches)
	require.Equal(t, []time.Duration{5 * time.Second}, f.sleeps)
}

func TestRunScriptedGateFailureFromEarlierTest(t *testing.T) {
	f := newFixture(t)
	f.exec.logs["Connect_1.2.3"] = passLog
	state := NewState("run-1")
	state.Counters.Add(GateCategory, 0, 1)

	res, err := f.orch.Run(context.Background(), scripted(3, "imaging", 10*time.Second), state)
	require.Nil(t, err)
	require.Equal(t, Failed, res.Status)
	require.Equal(t, 0, f.inst.launches)
}

func TestRunScriptedWithoutPostDelay(t *testing.T) {
	f := newFixture(t)
	f.exec.logs["Connect_1.2.3"] = passLog
	f.exec.exitCode = 2

	res, err := f.orch.Run(context.Background(), scripted(2, "connect", 0), NewState("run-1"))
	require.Nil(t, err)
	require.Equal(t, Passed, res.Status)
	require.Equal(t, 2, res.ExitCode)
	require.False(t, res.PostRun)
	require.Equal(t, 0, f.inst.launches)
}

func TestRunScriptedMissingLog(t *testing.T) {
	f := newFixture(t)
	res, err := f.orch.Run(context.Background(), scripted(2, "connect", 10*time.Second), NewState("run-1"))
	require.Nil(t, err)
	require.Equal(t, Failed, res.Status)
	require.Contains(t, res.Detail, "no result log")
	require.Equal(t, 0, f.inst.launches)
}

func TestRunScriptedExecutorDidNotStart(t *testing.T) {
	f := newFixture(t)
	// a log from an earlier run of the same case
	old := filepath.Join(f.fs.Log, "Connect_1.2.3_20240101_0900.log")
	require.Nil(t, os.WriteFile(old, []byte(passLog), 0o644))
	f.exec.err = errors.New("fork/exec FwTestApp: no such file or directory")

	res, err := f.orch.Run(context.Background(), scripted(2, "connect", 10*time.Second), NewState("run-1"))
	require.Nil(t, err)
	require.Equal(t, Failed, res.Status)
	require.Contains(t, res.Detail, "no such file")
	require.Equal(t, 0, res.Pass)
	require.Empty(t, res.LogPath)
	require.Equal(t, 0, f.inst.launches)
}

func TestRunScriptedIgnoresStaleLog(t *testing.T) {
	f := newFixture(t)
	old := filepath.Join(f.fs.Log, "Connect_1.2.3_20240101_0900.log")
	require.Nil(t, os.WriteFile(old, []byte(passLog), 0o644))
	hourAgo := time.Now().Add(-time.Hour)
	require.Nil(t, os.Chtimes(old, hourAgo, hourAgo))

	// the executor runs but leaves no log behind
	res, err := f.orch.Run(context.Background(), scripted(2, "connect", 10*time.Second), NewState("run-1"))
	require.Nil(t, err)
	require.Equal(t, Failed, res.Status)
	require.Contains(t, res.Detail, "predates the run")
	require.Equal(t, 0, res.Pass)
	require.Equal(t, 0, f.inst.launches)
}

func TestRunScriptedReportsTicket(t *testing.T) {
	f := newFixture(t)
	f.exec.logs["Connect_1.2.3"] = passLog
	f.reporter.err = errors.New("ticket server down")
	test := scripted(2, "connect", 0)
	test.TicketId = "CDG-T7"
	test.Summary = "Connect check"

	res, err := f.orch.Run(context.Background(), test, NewState("run-1"))
	require.Nil(t, err)
	require.Equal(t, Passed, res.Status)
	require.Len(t, f.reporter.tickets, 1)
	require.Equal(t, "CDG-T7", f.reporter.tickets[0].Id)
	require.Equal(t, 2, f.reporter.tickets[0].Pass)
	require.Contains(t, f.reporter.tickets[0].Log, "firmwareVersion")
}

func TestRunFirmwareUpdateUnresolved(t *testing.T) {
	f := newFixture(t)
	test := FirmwareUpdateTest{ScriptedTest: ScriptedTest{
		Meta:           Meta{Number: 4, Title: "FW Update", Category: "firmware"},
		TemplatePrefix: "fw_tmpl",
		ExecPrefix:     "FwUpdate_",
		VersionGroup:   "windows",
	}}
	res, err := f.orch.Run(context.Background(), test, NewState("run-1"))
	require.True(t, errors.Is(err, testcase.ErrGeneration))
	require.Equal(t, Failed, res.Status)
	require.Len(t, f.exec.ran(), 0)
	_, err = os.Stat(filepath.Join(f.fs.Config, "FwUpdate_1.2.3.tst"))
	require.True(t, os.IsNotExist(err))
	require.Len(t, f.recorder.records, 1)
}

func TestRunScriptedUnknownVersion(t *testing.T) {
	f := newFixture(t)
	f.orch.deps.Builds = fakeVersions{err: errors.New("no build downloaded yet")}
	_, err := f.orch.Run(context.Background(), scripted(2, "connect", 0), NewState("run-1"))
	require.True(t, errors.Is(err, testcase.ErrGeneration))
	require.Len(t, f.exec.ran(), 0)
}

func TestRunBasic(t *testing.T) {
	f := newFixture(t)
	state := NewState("run-1")
	basic := BasicTest{Meta: Meta{Number: 1, Title: "Connect", Category: GateCategory}}

	res, err := f.orch.Run(context.Background(), basic, state)
	require.Nil(t, err)
	require.Equal(t, Passed, res.Status)
	require.Equal(t, "10.0.0.7", state.Snapshot.IP)

	f.inst.findErr = errors.New("no route to host")
	res, err = f.orch.Run(context.Background(), basic, state)
	require.Nil(t, err)
	require.Equal(t, Failed, res.Status)
	counter, _ := state.Counters.Get(GateCategory)
	require.Equal(t, 1, counter.Pass)
	require.Equal(t, 1, counter.Fail)
}

func TestCatalog(t *testing.T) {
	tests, err := Catalog([]config.TestConfig{
		{Number: 3, Name: "FW Update", Kind: config.TestKindFirmwareUpdate, Category: "firmware", TemplatePrefix: "fw_tmpl", ExecPrefix: "FwUpdate_"},
		{Number: 1, Name: "Connect", Kind: config.TestKindBasic},
		{Number: 2, Name: "Scripted", Kind: config.TestKindScripted, TemplatePrefix: "connect_tmpl", ExecPrefix: "Connect_", PostDelay: time.Second},
	})
	require.Nil(t, err)
	require.Len(t, tests, 3)

	basic, ok := tests[0].(BasicTest)
	require.True(t, ok)
	require.Equal(t, GateCategory, basic.Category)
	s, ok := tests[1].(ScriptedTest)
	require.True(t, ok)
	require.Equal(t, "windows", s.VersionGroup)
	require.Equal(t, time.Second, s.PostDelay)
	_, ok = tests[2].(FirmwareUpdateTest)
	require.True(t, ok)

	selected, err := Select(tests, []int{3, 1})
	require.Nil(t, err)
	require.Equal(t, 1, selected[0].Info().Number)
	require.Equal(t, 3, selected[1].Info().Number)

	_, err = Select(tests, []int{9})
	require.NotNil(t, err)

	_, err = Catalog([]config.TestConfig{{Number: 1, Kind: "manual"}})
	require.NotNil(t, err)
}
