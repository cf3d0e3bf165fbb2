// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"github.com/foundriesio/fw-autotest/context"
)

type Context = context.Context

var (
	CtxGetLog = context.CtxGetLog
)
