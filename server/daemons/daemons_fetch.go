// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package daemons

import (
	"errors"
	"time"

	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/storage"
)

type Fetcher interface {
	FetchLatest(ctx context.Context, g builds.Group) (*builds.BuildRecord, error)
}

// WithBuildFetch runs a fetch cycle over every group right away and then once
// per interval. accepted is called for each newly accepted build.
func WithBuildFetch(fetcher Fetcher, groups []builds.Group, interval time.Duration, accepted func(context.Context, *builds.BuildRecord)) Option {
	return func(d *daemons) {
		fetchFunc := func(ctx context.Context, stop chan bool) {
			log := context.CtxGetLog(ctx).With("daemon", "build-fetch")
			ctx = context.CtxWithLog(ctx, log)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				FetchAll(ctx, fetcher, groups, accepted)
				select {
				case <-stop:
					return
				case <-ticker.C:
				}
			}
		}
		d.daemons = append(d.daemons, fetchFunc)
	}
}

// FetchAll runs one fetch cycle per group. A failing group does not keep the
// others from being fetched.
func FetchAll(ctx context.Context, fetcher Fetcher, groups []builds.Group, accepted func(context.Context, *builds.BuildRecord)) int {
	log := context.CtxGetLog(ctx)
	count := 0
	for _, g := range groups {
		rec, err := fetcher.FetchLatest(ctx, g)
		switch {
		case errors.Is(err, builds.ErrNotNewer):
			log.Debug("No new build", "group", g.Name)
		case errors.Is(err, storage.ErrLocked):
			log.Info("Fetch already in progress elsewhere", "group", g.Name)
		case err != nil:
			log.Error("Build fetch failed", "group", g.Name, "error", err)
		default:
			count++
			if accepted != nil {
				accepted(ctx, rec)
			}
		}
	}
	return count
}
