// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

//go:build nodb

package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fw-autotest/config"
)

func TestHistoryWithoutDb(t *testing.T) {
	cfg := config.Defaults()
	cfg.Workspace = t.TempDir()
	a, err := New(&cfg)
	require.Nil(t, err)

	h, err := a.History()
	require.Nil(t, err)
	require.Nil(t, h)

	// runs still work, just without a recorder
	orch, err := a.Orchestrator()
	require.Nil(t, err)
	require.NotNil(t, orch)
	require.Nil(t, a.Close())
}
