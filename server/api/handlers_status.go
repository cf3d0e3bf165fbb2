// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/results"
)

type Marker struct {
	Group   string `json:"group"`
	Path    string `json:"path"`
	Archive string `json:"archive"`
	Version string `json:"version,omitempty"`
}

// @Summary Get the build currently accepted for a group
// @Produce json
// @Success 200 {object} Marker
// @Router  /groups/{group}/marker [get]
func (h *handlers) markerGet(c echo.Context) error {
	name := c.Param("group")
	for _, g := range h.deps.Groups {
		if g.Name != name {
			continue
		}
		archive, err := h.deps.Markers.Marker(g)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		m := Marker{Group: g.Name, Path: g.Path, Archive: archive}
		if archive != "" {
			m.Version, _ = builds.FindVersion(archive, g.VersionIndex)
		}
		return c.JSON(http.StatusOK, m)
	}
	return c.String(http.StatusNotFound, "unknown group")
}

type Instrument struct {
	Reachable bool                       `json:"reachable"`
	Error     string                     `json:"error,omitempty"`
	Snapshot  results.InstrumentSnapshot `json:"snapshot"`
}

// @Summary Probe the instrument and report what the last run learnt about it
// @Produce json
// @Success 200 {object} Instrument
// @Router  /instrument [get]
func (h *handlers) instrumentGet(c echo.Context) error {
	ctx := c.Request().Context()
	var res Instrument
	if last := h.deps.Queue.Last(); last != nil {
		res.Snapshot = last.Snapshot
	}
	ip, err := h.deps.Instrument.ReadIP(ctx)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Reachable = true
		if ip != "" {
			res.Snapshot.IP = ip
		}
	}
	return c.JSON(http.StatusOK, res)
}
