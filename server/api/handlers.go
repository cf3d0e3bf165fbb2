// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/labstack/echo/v4"

	"github.com/foundriesio/fw-autotest/auth"
	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/instrument"
	"github.com/foundriesio/fw-autotest/orchestrator"
	"github.com/foundriesio/fw-autotest/server"
	"github.com/foundriesio/fw-autotest/storage/history"
)

type HistoryReader interface {
	List(limit int) ([]history.Record, error)
	ListRun(runId string) ([]history.Record, error)
}

type MarkerReader interface {
	Marker(g builds.Group) (string, error)
}

// Deps are what the API reads from and drives. A nil Auth leaves the API
// open.
type Deps struct {
	Auth        auth.AuthUserFunc
	Queue       *orchestrator.Queue
	Catalog     []orchestrator.Test
	History     HistoryReader
	Markers     MarkerReader
	Groups      []builds.Group
	Instrument  instrument.Controller
	CacheTTL    time.Duration
	TriggerRate float64
}

type handlers struct {
	deps    Deps
	history cache.Cache[string, []history.Record]
}

func RegisterHandlers(e *echo.Echo, deps Deps) {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	h := handlers{
		deps:    deps,
		history: cache.NewCache[string, []history.Record]().WithTTL(ttl).WithMaxKeys(16),
	}

	authFunc := deps.Auth
	if authFunc == nil {
		authFunc = auth.NoAuth
	}
	runsR := requireScope(auth.ScopeRunsR)
	runsRU := requireScope(auth.ScopeRunsRU)

	g := e.Group("/v1", authUser(authFunc))
	g.GET("/runs", h.runList, runsR)
	g.GET("/runs/:id", h.runGet, runsR)
	g.POST("/runs", h.runStart, runsRU, server.RateLimiter(deps.TriggerRate))
	g.POST("/runs/cancel", h.runCancel, runsRU)
	g.GET("/tests", h.testList, runsR)
	g.GET("/groups/:group/marker", h.markerGet, requireScope(auth.ScopeBuildsR))
	g.GET("/instrument", h.instrumentGet, requireScope(auth.ScopeInstrumentR))
}
