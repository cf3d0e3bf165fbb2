// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package orchestrator

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/results"
	"github.com/foundriesio/fw-autotest/storage"
)

var ErrBusy = errors.New("a test run is already in progress")

// CancelToken asks a queue run to stop. It is only looked at between tests:
// a running test always completes.
type CancelToken struct {
	cancelled atomic.Bool
}

func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

// Summary is the report of a queue run.
type Summary struct {
	RunId     string                     `json:"run-id"`
	Started   storage.Timestamp          `json:"started"`
	Completed storage.Timestamp          `json:"completed,omitempty"`
	Running   bool                       `json:"running"`
	Cancelled bool                       `json:"cancelled"`
	Results   []Result                   `json:"results"`
	Counters  map[string]results.Counter `json:"counters"`
	Snapshot  results.InstrumentSnapshot `json:"instrument"`
	Report    string                     `json:"report"`
	Error     string                     `json:"error,omitempty"`
}

// Passed tells whether every test that ran passed.
func (s Summary) Passed() bool {
	if s.Error != "" || len(s.Results) == 0 {
		return false
	}
	for _, r := range s.Results {
		if r.Status != Passed {
			return false
		}
	}
	return true
}

// Queue is the single worker running selected tests one after the other.
type Queue struct {
	orch *Orchestrator
	poll time.Duration

	wg     sync.WaitGroup
	lock   sync.Mutex
	token  *CancelToken
	active *Summary
	last   *Summary
}

func NewQueue(orch *Orchestrator, poll time.Duration) *Queue {
	return &Queue{orch: orch, poll: poll}
}

func (q *Queue) begin() (*CancelToken, *Summary, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.active != nil {
		return nil, nil, ErrBusy
	}
	q.token = &CancelToken{}
	q.active = &Summary{RunId: uuid.NewString(), Started: storage.Now(), Running: true}
	return q.token, q.active, nil
}

// Run executes tests in order and blocks until the queue is done. It stops at
// the first failed test or once cancelled.
func (q *Queue) Run(ctx context.Context, tests []Test) (*Summary, error) {
	token, summary, err := q.begin()
	if err != nil {
		return nil, err
	}
	q.run(ctx, tests, token, summary)
	return q.Last(), nil
}

// Start runs the tests in the background and returns the run id.
func (q *Queue) Start(ctx context.Context, tests []Test) (string, error) {
	token, summary, err := q.begin()
	if err != nil {
		return "", err
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(context.WithoutCancel(ctx), tests, token, summary)
	}()
	return summary.RunId, nil
}

// Wait blocks until the run started in the background, if any, is done.
// Combined with Cancel it lets the test in flight complete before shutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, tests []Test, token *CancelToken, summary *Summary) {
	ctx = context.CtxWithRunId(ctx, summary.RunId)
	log := context.CtxGetLog(ctx)
	log.Info("Auto-test starting", "tests", len(tests))

	state := NewState(summary.RunId)
	for i, test := range tests {
		if token.Cancelled() {
			log.Info("Auto-test cancelled", "remaining", len(tests)-i)
			q.update(func(s *Summary) { s.Cancelled = true })
			break
		}
		res, err := q.orch.Run(ctx, test, state)
		q.update(func(s *Summary) {
			s.Results = append(s.Results, *res)
			if err != nil {
				s.Error = err.Error()
			}
		})
		if err != nil || res.Status != Passed {
			log.Warn("Test run failed, stopping the queue", "test", test.Info().Number)
			break
		}
		if i < len(tests)-1 {
			q.orch.sleep(q.poll)
		}
	}

	var report strings.Builder
	_ = state.Counters.Render(&report)
	q.lock.Lock()
	summary.Running = false
	summary.Completed = storage.Now()
	summary.Counters = state.Counters.Snapshot()
	summary.Snapshot = *state.Snapshot
	summary.Report = report.String()
	q.last = summary
	q.active = nil
	q.token = nil
	q.lock.Unlock()
	log.Info("Auto-test completed", "report", summary.Report)
}

func (q *Queue) update(fn func(s *Summary)) {
	q.lock.Lock()
	defer q.lock.Unlock()
	fn(q.active)
}

// Cancel flags the active run, if any, to stop before its next test.
func (q *Queue) Cancel() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.token == nil {
		return false
	}
	q.token.Cancel()
	return true
}

// Active returns a copy of the summary of the run in progress, or nil.
func (q *Queue) Active() *Summary {
	q.lock.Lock()
	defer q.lock.Unlock()
	return copySummary(q.active)
}

// Last returns a copy of the summary of the last completed run, or nil.
func (q *Queue) Last() *Summary {
	q.lock.Lock()
	defer q.lock.Unlock()
	return copySummary(q.last)
}

func copySummary(s *Summary) *Summary {
	if s == nil {
		return nil
	}
	c := *s
	c.Results = append([]Result(nil), s.Results...)
	return &c
}
