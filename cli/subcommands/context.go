// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package subcommands

import (
	"context"

	"github.com/foundriesio/fw-autotest/app"
)

type ctxKey int

const ContextKey ctxKey = iota

func CtxWithApp(ctx context.Context, a *app.App) context.Context {
	return context.WithValue(ctx, ContextKey, a)
}

func CtxGetApp(ctx context.Context) *app.App {
	return ctx.Value(ContextKey).(*app.App)
}
