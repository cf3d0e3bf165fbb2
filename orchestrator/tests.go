// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package orchestrator

import (
	"fmt"
	"slices"
	"time"

	"github.com/foundriesio/fw-autotest/config"
)

// GateCategory is the category whose failures mark a whole run as failed
// and suppress post-run instrument actions.
const GateCategory = "connect"

const defaultVersionGroup = "windows"

// Meta is shared by every kind of test.
type Meta struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (m Meta) Info() Meta {
	return m
}

// Test is one of BasicTest, ScriptedTest or FirmwareUpdateTest.
type Test interface {
	Info() Meta
	Kind() string
}

// BasicTest only checks the instrument answers.
type BasicTest struct {
	Meta
}

func (BasicTest) Kind() string { return config.TestKindBasic }

// ScriptedTest is generated from a template and run by the headless executor.
type ScriptedTest struct {
	Meta
	TemplatePrefix string
	ExecPrefix     string
	TicketId       string
	Summary        string
	// PostDelay is waited before relaunching the on-device test app. Zero
	// means the app is not relaunched.
	PostDelay    time.Duration
	VersionGroup string
}

func (ScriptedTest) Kind() string { return config.TestKindScripted }

// FirmwareUpdateTest is a scripted test whose template also references the
// five firmware binaries of the build under test.
type FirmwareUpdateTest struct {
	ScriptedTest
}

func (FirmwareUpdateTest) Kind() string { return config.TestKindFirmwareUpdate }

// Catalog turns the configured test list into tests, sorted by number.
func Catalog(entries []config.TestConfig) ([]Test, error) {
	tests := make([]Test, 0, len(entries))
	for _, e := range entries {
		meta := Meta{Number: e.Number, Title: e.Name, Category: e.Category}
		if meta.Category == "" {
			meta.Category = GateCategory
		}
		scripted := ScriptedTest{
			Meta:           meta,
			TemplatePrefix: e.TemplatePrefix,
			ExecPrefix:     e.ExecPrefix,
			TicketId:       e.TicketId,
			Summary:        e.Summary,
			PostDelay:      e.PostDelay,
			VersionGroup:   e.VersionGroup,
		}
		if scripted.VersionGroup == "" {
			scripted.VersionGroup = defaultVersionGroup
		}
		switch e.Kind {
		case config.TestKindBasic:
			tests = append(tests, BasicTest{Meta: meta})
		case config.TestKindScripted:
			tests = append(tests, scripted)
		case config.TestKindFirmwareUpdate:
			tests = append(tests, FirmwareUpdateTest{ScriptedTest: scripted})
		default:
			return nil, fmt.Errorf("test %d has unknown kind: %s", e.Number, e.Kind)
		}
	}
	slices.SortFunc(tests, func(a, b Test) int { return a.Info().Number - b.Info().Number })
	return tests, nil
}

// Select picks tests by number, keeping the catalog order. No numbers selects
// the whole catalog.
func Select(catalog []Test, numbers []int) ([]Test, error) {
	if len(numbers) == 0 {
		return catalog, nil
	}
	selected := make([]Test, 0, len(numbers))
	for _, t := range catalog {
		if slices.Contains(numbers, t.Info().Number) {
			selected = append(selected, t)
		}
	}
	if len(selected) != len(numbers) {
		for _, n := range numbers {
			if !slices.ContainsFunc(selected, func(t Test) bool { return t.Info().Number == n }) {
				return nil, fmt.Errorf("no test number %d in the catalog", n)
			}
		}
	}
	return selected, nil
}
