// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/executor"
	"github.com/foundriesio/fw-autotest/firmware"
	"github.com/foundriesio/fw-autotest/instrument"
	"github.com/foundriesio/fw-autotest/results"
	"github.com/foundriesio/fw-autotest/storage"
	"github.com/foundriesio/fw-autotest/storage/history"
	"github.com/foundriesio/fw-autotest/testcase"
	"github.com/foundriesio/fw-autotest/ticket"
)

type Status string

const (
	Passed Status = "passed"
	Failed Status = "failed"
)

// Result is the outcome of one test.
type Result struct {
	Meta
	Kind     string `json:"kind"`
	CaseName string `json:"case,omitempty"`
	Version  string `json:"version,omitempty"`
	Status   Status `json:"status"`
	ExitCode int    `json:"exit-code"`
	Pass     int    `json:"pass"`
	Fail     int    `json:"fail"`
	LogPath  string `json:"log-path,omitempty"`
	// PostRun tells whether the on-device test app was relaunched.
	PostRun   bool              `json:"post-run"`
	Detail    string            `json:"detail,omitempty"`
	Started   storage.Timestamp `json:"started"`
	Completed storage.Timestamp `json:"completed"`
}

// State is carried across the tests of one queue run.
type State struct {
	RunId    string
	Counters *results.Counters
	Snapshot *results.InstrumentSnapshot
}

func NewState(runId string) *State {
	return &State{RunId: runId, Counters: results.NewCounters(), Snapshot: &results.InstrumentSnapshot{}}
}

type VersionSource interface {
	CurrentVersion(ctx context.Context, g builds.Group) (string, error)
}

type Executor interface {
	Run(ctx context.Context, caseName string) (*executor.Outcome, error)
}

type Recorder interface {
	Add(r history.Record) error
}

// Deps are the collaborators an Orchestrator drives. Recorder may be nil.
type Deps struct {
	Builds     VersionSource
	Executor   Executor
	Instrument instrument.Controller
	Reporter   ticket.Reporter
	Recorder   Recorder
}

// Orchestrator runs one test at a time: generate the case, run it headless,
// collect and report the results, then decide on post-run actions.
type Orchestrator struct {
	deps       Deps
	groups     map[string]builds.Group
	generator  *testcase.Generator
	aggregator *results.Aggregator

	bootDelay   time.Duration
	settleDelay time.Duration
	sleep       func(time.Duration)
}

func New(cfg *config.Config, fs *storage.FsHandle, deps Deps) (*Orchestrator, error) {
	groups, err := builds.GroupsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]builds.Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}
	if deps.Reporter == nil {
		deps.Reporter = ticket.Noop{}
	}
	if deps.Instrument == nil {
		deps.Instrument = instrument.Noop{}
	}
	return &Orchestrator{
		deps:        deps,
		groups:      byName,
		generator:   testcase.NewGenerator(fs.Templates, fs.Config, firmware.NewResolver(fs.Deploy)),
		aggregator:  results.NewAggregator(fs.Log),
		bootDelay:   cfg.Executor.BootDelay,
		settleDelay: cfg.Executor.SettleDelay,
		sleep:       time.Sleep,
	}, nil
}

// Aggregator exposes the result log reader, e.g. for version queries.
func (o *Orchestrator) Aggregator() *results.Aggregator {
	return o.aggregator
}

// Run executes test and merges its counts into state. A returned error is
// terminal for the test: the case could not be generated and nothing ran.
// A test that ran but failed is a Result with status Failed and no error.
func (o *Orchestrator) Run(ctx context.Context, test Test, state *State) (*Result, error) {
	meta := test.Info()
	log := context.CtxGetLog(ctx).With("test", meta.Number, "title", meta.Title)
	ctx = context.CtxWithLog(ctx, log)
	log.Info("Test starting", "kind", test.Kind())

	res := &Result{Meta: meta, Kind: test.Kind(), Started: storage.Now()}
	var err error
	switch t := test.(type) {
	case BasicTest:
		o.runBasic(ctx, res, state)
	case ScriptedTest:
		err = o.runScripted(ctx, t, false, res, state)
	case FirmwareUpdateTest:
		err = o.runScripted(ctx, t.ScriptedTest, true, res, state)
	default:
		err = fmt.Errorf("unsupported test type %T", test)
	}
	if err != nil {
		res.Status = Failed
		res.Detail = err.Error()
	}
	res.Completed = storage.Now()
	o.record(ctx, res, state)
	log.Info("Test completed", "status", res.Status, "pass", res.Pass, "fail", res.Fail)
	return res, err
}

func (o *Orchestrator) runBasic(ctx context.Context, res *Result, state *State) {
	log := context.CtxGetLog(ctx)
	if err := o.deps.Instrument.Find(ctx); err != nil {
		log.Error("Instrument not found", "error", err)
		state.Counters.Add(res.Category, 0, 1)
		res.Fail, res.Status, res.Detail = 1, Failed, err.Error()
		return
	}
	if ip, err := o.deps.Instrument.ReadIP(ctx); err != nil {
		log.Warn("Unable to read instrument IP", "error", err)
	} else if ip != "" {
		state.Snapshot.IP = ip
	}
	state.Counters.Add(res.Category, 1, 0)
	res.Pass, res.Status = 1, Passed
}

func (o *Orchestrator) runScripted(ctx context.Context, t ScriptedTest, fwUpdate bool, res *Result, state *State) error {
	log := context.CtxGetLog(ctx)

	g, ok := o.groups[t.VersionGroup]
	if !ok {
		return fmt.Errorf("%w: unknown build group %s", testcase.ErrGeneration, t.VersionGroup)
	}
	version, err := o.deps.Builds.CurrentVersion(ctx, g)
	if err != nil {
		return fmt.Errorf("%w: %w", testcase.ErrGeneration, err)
	}
	res.Version = version

	// generate
	var tc *testcase.GeneratedTestCase
	if fwUpdate {
		tc, err = o.generator.GenerateFirmwareUpdate(ctx, t.TemplatePrefix, t.ExecPrefix, version)
	} else {
		tc, err = o.generator.Generate(ctx, t.TemplatePrefix, t.ExecPrefix, version)
	}
	if err != nil {
		return err
	}
	res.CaseName = tc.Name

	// run
	outcome, err := o.deps.Executor.Run(ctx, tc.Name)
	var exitErr executor.ExitError
	if errors.As(err, &exitErr) {
		log.Warn("Executor reported a failure, collecting results anyway", "exit_code", exitErr.ExitCode)
	} else if err != nil {
		// without a process there is no result log of this run to collect
		log.Error("Executor did not run", "error", err)
		res.Status, res.Detail = Failed, err.Error()
		return nil
	}
	if outcome != nil {
		res.ExitCode = outcome.ExitCode
	}
	o.sleep(o.settleDelay)

	// collect
	col, err := o.aggregator.CollectSince(ctx, tc.Name, res.Started.ToTime(), state.Snapshot)
	if err != nil {
		log.Error("Unable to collect results", "error", err)
		res.Status, res.Detail = Failed, err.Error()
		return nil
	}
	res.Pass, res.Fail, res.LogPath = col.Pass, col.Fail, col.LogPath
	state.Counters.Add(res.Category, col.Pass, col.Fail)

	// report
	o.report(ctx, t, res)

	// a gate failure anywhere in the run suppresses the post-run actions
	if gate, _ := state.Counters.Get(GateCategory); gate.Fail > 0 {
		log.Warn("Run failed, skipping post-run actions", "category", GateCategory, "fail", gate.Fail)
		res.Status = Failed
		return nil
	}
	if t.PostDelay > 0 {
		o.sleep(t.PostDelay)
		if err := o.deps.Instrument.RunTestApp(ctx); err != nil {
			log.Error("Unable to relaunch the test app on the instrument", "error", err)
			res.Status, res.Detail = Failed, err.Error()
			return nil
		}
		res.PostRun = true
		log.Info("Waiting for the instrument to boot", "delay", o.bootDelay)
		o.sleep(o.bootDelay)
	}
	res.Status = Passed
	return nil
}

func (o *Orchestrator) report(ctx context.Context, t ScriptedTest, res *Result) {
	if t.TicketId == "" {
		return
	}
	content, err := os.ReadFile(res.LogPath)
	if err != nil {
		context.CtxGetLog(ctx).Warn("Unable to read result log for ticket", "error", err)
	}
	tk := ticket.Ticket{
		Id:      t.TicketId,
		Summary: t.Summary,
		Case:    res.CaseName,
		Pass:    res.Pass,
		Fail:    res.Fail,
		Log:     string(content),
	}
	if err := o.deps.Reporter.Submit(ctx, tk); err != nil {
		context.CtxGetLog(ctx).Warn("Unable to submit ticket", "ticket", t.TicketId, "error", err)
	}
}

func (o *Orchestrator) record(ctx context.Context, res *Result, state *State) {
	if o.deps.Recorder == nil {
		return
	}
	err := o.deps.Recorder.Add(history.Record{
		RunId:      state.RunId,
		TestNumber: res.Number,
		TestName:   res.Title,
		Category:   res.Category,
		Version:    res.Version,
		Pass:       res.Pass,
		Fail:       res.Fail,
		Status:     string(res.Status),
		ExitCode:   res.ExitCode,
		LogPath:    res.LogPath,
		Started:    res.Started,
		Completed:  res.Completed,
	})
	if err != nil {
		context.CtxGetLog(ctx).Warn("Unable to record test history", "error", err)
	}
}
