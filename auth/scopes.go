// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Scopes is a bitmask of API access. Each resource gets four bits: Read,
// Update, Create, Delete.
type Scopes uint64

const (
	scopeR Scopes = 1 << 0
	scopeU Scopes = 1 << 1

	scopeShiftRuns       Scopes = 0
	scopeShiftBuilds     Scopes = 4
	scopeShiftInstrument Scopes = 8

	ScopeRunsR  = scopeR << scopeShiftRuns
	ScopeRunsRU = (scopeU | scopeR) << scopeShiftRuns

	ScopeBuildsR = scopeR << scopeShiftBuilds

	ScopeInstrumentR = scopeR << scopeShiftInstrument

	ScopeAll = ScopeRunsRU | ScopeBuildsR | ScopeInstrumentR
)

var maskToString = map[Scopes]string{
	ScopeRunsR:       "runs:read",
	ScopeRunsRU:      "runs:read-update",
	ScopeBuildsR:     "builds:read",
	ScopeInstrumentR: "instrument:read",
}

var stringToMask = map[string]Scopes{}
var allScopes []string

func init() {
	for k, v := range maskToString {
		stringToMask[v] = k
		allScopes = append(allScopes, v)
	}
	sort.Strings(allScopes)
}

func ScopesAvailable() []string {
	return allScopes
}

// ScopesFromString parses a comma-separated list of scopes.
func ScopesFromString(scopes string) (Scopes, error) {
	return ScopesFromSlice(strings.Split(scopes, ","))
}

func ScopesFromSlice(scopes []string) (Scopes, error) {
	var s Scopes
	for _, scope := range scopes {
		if v, ok := stringToMask[strings.TrimSpace(scope)]; ok {
			s |= v
		} else {
			return 0, fmt.Errorf("invalid scope: `%s`", scope)
		}
	}
	return s, nil
}

func (s Scopes) String() string {
	return strings.Join(s.ToSlice(), ",")
}

// ToSlice lists the granted scopes, dropping a "read" that a "read-update"
// of the same resource already covers.
func (s Scopes) ToSlice() []string {
	var result []string
	for k, v := range maskToString {
		if s&k == k {
			result = append(result, v)
		}
	}
	sort.Strings(result)

	filtered := make([]string, 0, len(result))
	for i, scope := range result {
		if strings.HasSuffix(scope, ":read") && i+1 < len(result) && result[i+1] == scope+"-update" {
			continue
		}
		filtered = append(filtered, scope)
	}
	return filtered
}

func (s Scopes) Has(scope Scopes) bool {
	return s&scope == scope
}
