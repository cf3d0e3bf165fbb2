// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foundriesio/fw-autotest/app"
	"github.com/foundriesio/fw-autotest/auth"
	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/firmware"
	"github.com/foundriesio/fw-autotest/orchestrator"
	"github.com/foundriesio/fw-autotest/server"
	"github.com/foundriesio/fw-autotest/server/api"
	"github.com/foundriesio/fw-autotest/server/daemons"
)

type ServeCmd struct {
	Port    uint16 `help:"API port, overrides the configured one"`
	NoFetch bool   `help:"Do not poll the build repository"`

	quit      chan os.Signal
	apiServer *server.Server
}

func (c *ServeCmd) Run(args CommonArgs) error {
	cfg, err := args.loadConfig()
	if err != nil {
		return err
	}
	logger, err := context.InitLogger(cfg.LogLevel, os.Stdout)
	if err != nil {
		return err
	}
	ctx := context.CtxWithLog(context.Background(), logger)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Unable to close the history database", "error", err)
		}
	}()
	queue, err := a.Queue()
	if err != nil {
		return err
	}
	hist, err := a.History()
	if err != nil {
		return err
	} else if hist == nil {
		return errors.New("the daemon needs a history database")
	}

	authFunc, err := auth.NewTokenAuth(cfg.Server.Tokens)
	if err != nil {
		return err
	}

	// setup channel to gracefully terminate server
	c.quit = make(chan os.Signal, 1)
	signal.Notify(c.quit, syscall.SIGTERM, syscall.SIGINT)
	serveErr := make(chan error)

	e := server.NewEchoServer("rest-api", logger)
	api.RegisterHandlers(e, api.Deps{
		Auth:        authFunc,
		Queue:       queue,
		Catalog:     a.Catalog,
		History:     hist,
		Markers:     a.Builds,
		Groups:      a.Groups,
		Instrument:  a.Instrument,
		CacheTTL:    cfg.Server.CacheTTL,
		TriggerRate: cfg.Server.TriggerRate,
	})
	port := cfg.Server.Port
	if c.Port != 0 {
		port = c.Port
	}
	c.apiServer = server.NewServer(ctx, e, port)

	var opts []daemons.Option
	if !c.NoFetch && cfg.Server.FetchInterval > 0 {
		opts = append(opts, daemons.WithBuildFetch(a.Builds, a.Groups, cfg.Server.FetchInterval, buildAccepted(a, queue)))
	}
	dmns := daemons.New(ctx, opts...)

	logger.Info("Starting auto-test daemon", "port", port, "workspace", cfg.Workspace)
	c.apiServer.Start(serveErr)
	dmns.Start()

	select {
	case err = <-serveErr:
		logger.Error("Unable to serve the rest-api", "error", err)
	case <-c.quit:
		logger.Info("Shutting down")
	}
	if queue.Cancel() {
		logger.Info("Active run stops after its current test")
	}
	dmns.Shutdown()
	if shutdownErr := c.apiServer.Shutdown(time.Minute); shutdownErr != nil {
		logger.Error("Unexpected error stopping rest-api server", "error", shutdownErr)
	}
	// a run may have been started while the daemons and the api were stopping
	queue.Cancel()
	queue.Wait()
	return err
}

// buildAccepted stages a freshly fetched build and, when configured, runs the
// whole catalog against it.
func buildAccepted(a *app.App, queue *orchestrator.Queue) func(context.Context, *builds.BuildRecord) {
	return func(ctx context.Context, rec *builds.BuildRecord) {
		log := context.CtxGetLog(ctx).With("group", rec.Group, "archive", rec.ArchiveName)
		g, err := a.Group(rec.Group)
		if err != nil {
			log.Error("Accepted build of an unknown group", "error", err)
			return
		}
		if err := a.Builds.Unpack(ctx, g); err != nil {
			log.Error("Unable to unpack build", "error", err)
			return
		}
		if err := a.Builds.Deploy(ctx, g, firmware.StalePatterns()...); err != nil {
			log.Error("Unable to deploy build", "error", err)
			return
		}
		if !a.Config.Server.RunOnBuild {
			return
		}
		if runId, err := queue.Start(ctx, a.Catalog); err != nil {
			log.Warn("Auto-test not started for new build", "error", err)
		} else {
			log.Info("Auto-test started for new build", "run_id", runId)
		}
	}
}
