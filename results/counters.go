// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package results

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// Counter is the pass/fail tally of one test category.
type Counter struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
}

// Counters maps a test category, e.g. "connect", to its running tally.
// Categories appear once a test of that category ran.
type Counters struct {
	lock   sync.Mutex
	byName map[string]*Counter
	order  []string
}

func NewCounters() *Counters {
	return &Counters{byName: make(map[string]*Counter)}
}

func (c *Counters) Add(category string, pass, fail int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	counter, ok := c.byName[category]
	if !ok {
		counter = &Counter{}
		c.byName[category] = counter
		c.order = append(c.order, category)
	}
	counter.Pass += pass
	counter.Fail += fail
}

// Get returns a copy of the category's tally and whether it ran at all.
func (c *Counters) Get(category string) (Counter, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if counter, ok := c.byName[category]; ok {
		return *counter, true
	}
	return Counter{}, false
}

// Categories lists the categories in the order they first ran.
func (c *Counters) Categories() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return slices.Clone(c.order)
}

// Snapshot copies the tallies, e.g. for JSON responses.
func (c *Counters) Snapshot() map[string]Counter {
	c.lock.Lock()
	defer c.lock.Unlock()
	snap := make(map[string]Counter, len(c.byName))
	for name, counter := range c.byName {
		snap[name] = *counter
	}
	return snap
}

// Render writes one "Name - Pass: n - Fail: n" line per category that ran.
func (c *Counters) Render(w io.Writer) error {
	for _, category := range c.Categories() {
		counter, _ := c.Get(category)
		if _, err := fmt.Fprintf(w, "%s - Pass: %d - Fail: %d\n", title(category), counter.Pass, counter.Fail); err != nil {
			return err
		}
	}
	return nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
