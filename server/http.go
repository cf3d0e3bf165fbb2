// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/foundriesio/fw-autotest/context"
)

type Server struct {
	context context.Context
	echo    *echo.Echo
	server  *http.Server
}

func NewServer(ctx context.Context, echo *echo.Echo, port uint16) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{context: ctx, echo: echo, server: srv}
}

func (s Server) Start(quit chan error) {
	go func() {
		if err := s.echo.StartServer(s.server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			quit <- err
		}
	}()
}

func (s Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.context), timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// GetAddress is only valid once the listener is up.
func (s Server) GetAddress() string {
	if s.echo.Listener == nil {
		return ""
	}
	return s.echo.Listener.Addr().String()
}
