// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package context

import (
	"context"
	"log/slog"
)

type (
	Context    = context.Context
	CancelFunc = context.CancelFunc
	ctxKey     int
)

var (
	Background    = context.Background
	WithCancel    = context.WithCancel
	WithTimeout   = context.WithTimeout
	WithoutCancel = context.WithoutCancel
	Canceled      = context.Canceled
)

const (
	ctxKeyLogger ctxKey = iota
	ctxKeyRunId
)

// CtxGetLog returns the logger attached to ctx, or the default logger when
// nothing was attached.
func CtxGetLog(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

func CtxWithLog(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, log)
}

func CtxGetRunId(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRunId).(string)
	return id
}

// CtxWithRunId tags ctx and its logger with a queue run identifier.
func CtxWithRunId(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRunId, id)
	return CtxWithLog(ctx, CtxGetLog(ctx).With("run_id", id))
}
