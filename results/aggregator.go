// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/storage"
)

var (
	ErrNoLog = errors.New("no result log found")
	ErrParse = errors.New("malformed result log")
)

const logExtension = ".log"

var versionPattern = regexp.MustCompile(`firmwareVersion = ([\d.]+)`)

// InstrumentSnapshot is what is known about the instrument under test.
type InstrumentSnapshot struct {
	IP           string `json:"ip"`
	Main         string `json:"main"`
	Camera       string `json:"camera"`
	Led          string `json:"led"`
	PowerMonitor string `json:"power_monitor"`
}

func (s *InstrumentSnapshot) set(target, version string) {
	switch target {
	case "main":
		s.Main = version
	case "camera":
		s.Camera = version
	case "led":
		s.Led = version
	case "powermonitor":
		s.PowerMonitor = version
	}
}

// versionQueries maps the executor's version query commands to the firmware
// they report on.
var versionQueries = map[string]string{
	"version(firmware,main,)":         "main",
	"version(firmware,camera,)":       "camera",
	"version(firmware,led,)":          "led",
	"version(firmware,powermonitor,)": "powermonitor",
}

// Collection is what one result log yielded.
type Collection struct {
	LogPath string
	Pass    int
	Fail    int
	// Tests is false when the log carried no tests collection at all.
	Tests bool
}

// Aggregator reads the structured logs the headless executor leaves behind.
type Aggregator struct {
	logDir string
}

func NewAggregator(logDir string) *Aggregator {
	return &Aggregator{logDir: logDir}
}

// LatestLog returns the path of the greatest named log for a test case.
// Log names embed a sortable timestamp so the greatest is the most recent.
func (a Aggregator) LatestLog(caseName string) (string, error) {
	names, err := storage.ListFiles(a.logDir, caseName, logExtension)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s in %s", ErrNoLog, caseName, a.logDir)
	}
	return filepath.Join(a.logDir, names[len(names)-1]), nil
}

// Collect parses the latest log of caseName, counts results and records any
// firmware version reports into snap. A log without a tests collection
// yields zero counts.
func (a Aggregator) Collect(ctx context.Context, caseName string, snap *InstrumentSnapshot) (*Collection, error) {
	return a.CollectSince(ctx, caseName, time.Time{}, snap)
}

// CollectSince is Collect restricted to a log written at or after since, so
// a run that left no log of its own does not pick up an earlier one.
func (a Aggregator) CollectSince(ctx context.Context, caseName string, since time.Time, snap *InstrumentSnapshot) (*Collection, error) {
	log := context.CtxGetLog(ctx).With("case", caseName)
	path, err := a.LatestLog(caseName)
	if err != nil {
		return nil, err
	}
	if !since.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("unable to stat %s: %w", path, err)
		}
		if info.ModTime().Before(since) {
			return nil, fmt.Errorf("%w: %s predates the run", ErrNoLog, path)
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(content) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrParse, path)
	}

	col := &Collection{LogPath: path}
	tests := gjson.GetBytes(content, "tests")
	if !tests.Exists() {
		log.Warn("Result log has no tests collection", "log", path)
		return col, nil
	}
	if !tests.IsArray() {
		return nil, fmt.Errorf("%w: %s tests is not a list", ErrParse, path)
	}
	col.Tests = true

	tests.ForEach(func(_, entry gjson.Result) bool {
		cmd := entry.Get("cmdStr").String()
		if target, ok := versionQueries[cmd]; ok && snap != nil {
			if m := versionPattern.FindStringSubmatch(entry.Get("logStr").String()); m != nil {
				snap.set(target, m[1])
			} else {
				log.Info("No firmware version found in log entry", "firmware", target)
			}
		}
		switch strings.ToUpper(entry.Get("result").String()) {
		case "PASS", "PASSED":
			col.Pass++
		case "FAIL", "FAILED":
			col.Fail++
		}
		return true
	})
	log.Debug("Results collected", "log", path, "pass", col.Pass, "fail", col.Fail)
	return col, nil
}

// Versions only refreshes the firmware versions of snap from the latest log
// of caseName, typically a dedicated version query test case.
func (a Aggregator) Versions(ctx context.Context, caseName string, snap *InstrumentSnapshot) error {
	_, err := a.Collect(ctx, caseName, snap)
	return err
}
