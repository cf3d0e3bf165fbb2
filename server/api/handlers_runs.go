// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/foundriesio/fw-autotest/orchestrator"
	"github.com/foundriesio/fw-autotest/storage/history"
)

type RunList struct {
	Active  *orchestrator.Summary `json:"active"`
	Last    *orchestrator.Summary `json:"last"`
	History []history.Record      `json:"history"`
}

type RunRequest struct {
	Tests []int `json:"tests"`
	All   bool  `json:"all"`
}

type RunStarted struct {
	RunId string `json:"run-id"`
}

// @Summary List the active run, the last run and recent test history
// @Param limit query int false "Number of history records"
// @Produce json
// @Success 200 {object} RunList
// @Router  /runs [get]
func (h *handlers) runList(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		var err error
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return c.String(http.StatusBadRequest, "limit must be a positive number")
		}
	}

	// history grows with every test of an active run, and a finished run
	// changes the key
	active, last := h.deps.Queue.Active(), h.deps.Queue.Last()
	key := strconv.Itoa(limit)
	if last != nil {
		key += "/" + last.RunId
	}
	records, ok := h.history.Get(key)
	if active != nil || !ok {
		var err error
		if records, err = h.deps.History.List(limit); err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if active == nil {
			h.history.Set(key, records, 0)
		}
	}
	return c.JSON(http.StatusOK, RunList{
		Active:  active,
		Last:    last,
		History: records,
	})
}

// @Summary Get one run, from memory while it is recent or from history
// @Produce json
// @Success 200 {object} orchestrator.Summary
// @Success 200 {array} history.Record
// @Router  /runs/{id} [get]
func (h *handlers) runGet(c echo.Context) error {
	id := c.Param("id")
	for _, s := range []*orchestrator.Summary{h.deps.Queue.Active(), h.deps.Queue.Last()} {
		if s != nil && s.RunId == id {
			return c.JSON(http.StatusOK, s)
		}
	}
	records, err := h.deps.History.ListRun(id)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	} else if len(records) == 0 {
		return c.String(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, records)
}

// @Summary Start a run of the selected tests
// @Accept  json
// @Param   data body RunRequest true "Test numbers, or all"
// @Produce json
// @Success 202 {object} RunStarted
// @Router  /runs [post]
func (h *handlers) runStart(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if !req.All && len(req.Tests) == 0 {
		return c.String(http.StatusBadRequest, "select tests to run or set all")
	}
	numbers := req.Tests
	if req.All {
		numbers = nil
	}
	tests, err := orchestrator.Select(h.deps.Catalog, numbers)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	runId, err := h.deps.Queue.Start(c.Request().Context(), tests)
	if errors.Is(err, orchestrator.ErrBusy) {
		return c.String(http.StatusConflict, err.Error())
	} else if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.history.Purge()
	CtxGetLog(c.Request().Context()).Info("Run started", "run_id", runId, "tests", len(tests))
	return c.JSON(http.StatusAccepted, RunStarted{RunId: runId})
}

// @Summary Stop the active run once its current test completes
// @Success 202
// @Router  /runs/cancel [post]
func (h *handlers) runCancel(c echo.Context) error {
	if !h.deps.Queue.Cancel() {
		return c.String(http.StatusConflict, "no run in progress")
	}
	return c.NoContent(http.StatusAccepted)
}

type TestItem struct {
	orchestrator.Meta
	Kind string `json:"kind"`
}

// @Summary List the test catalog
// @Produce json
// @Success 200 {array} TestItem
// @Router  /tests [get]
func (h *handlers) testList(c echo.Context) error {
	items := make([]TestItem, 0, len(h.deps.Catalog))
	for _, t := range h.deps.Catalog {
		items = append(items, TestItem{Meta: t.Info(), Kind: t.Kind()})
	}
	return c.JSON(http.StatusOK, items)
}
