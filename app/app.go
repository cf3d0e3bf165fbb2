// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package app wires the configured components together for the CLI and the
// daemon.
package app

import (
	"errors"
	"fmt"

	"github.com/foundriesio/fw-autotest/builds"
	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/executor"
	"github.com/foundriesio/fw-autotest/instrument"
	"github.com/foundriesio/fw-autotest/orchestrator"
	"github.com/foundriesio/fw-autotest/storage"
	"github.com/foundriesio/fw-autotest/storage/history"
	"github.com/foundriesio/fw-autotest/ticket"
)

type App struct {
	Config     *config.Config
	Fs         *storage.FsHandle
	Builds     *builds.Client
	Groups     []builds.Group
	Catalog    []orchestrator.Test
	Instrument instrument.Controller

	db      *storage.DbHandle
	history *history.Storage
}

func New(cfg *config.Config) (*App, error) {
	fs := storage.NewFs(cfg)
	if err := fs.EnsureDirs(); err != nil {
		return nil, err
	}
	groups, err := builds.GroupsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := orchestrator.Catalog(cfg.Tests)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:     cfg,
		Fs:         fs,
		Builds:     builds.NewClientFromConfig(cfg, fs),
		Groups:     groups,
		Catalog:    catalog,
		Instrument: instrument.New(cfg.Instrument),
	}, nil
}

// Group finds a build group by name.
func (a *App) Group(name string) (builds.Group, error) {
	for _, g := range a.Groups {
		if g.Name == name {
			return g, nil
		}
	}
	return builds.Group{}, fmt.Errorf("unknown build group: %s", name)
}

// SelectGroups returns the named groups, or all of them when names is empty.
func (a *App) SelectGroups(names []string) ([]builds.Group, error) {
	if len(names) == 0 {
		return a.Groups, nil
	}
	groups := make([]builds.Group, 0, len(names))
	for _, name := range names {
		g, err := a.Group(name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// History opens the run history database on first use. A config without a
// database file has no history.
func (a *App) History() (*history.Storage, error) {
	if a.history != nil || a.Config.History.DbFile == "" {
		return a.history, nil
	}
	db, err := storage.NewDb(a.Config.Path(a.Config.History.DbFile))
	if err != nil {
		return nil, err
	} else if db == nil {
		// nodb builds
		return nil, nil
	}
	h, err := history.NewStorage(db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	a.db, a.history = db, h
	return h, nil
}

func (a *App) Orchestrator() (*orchestrator.Orchestrator, error) {
	reporter, err := ticket.New(a.Config)
	if err != nil {
		return nil, err
	}
	deps := orchestrator.Deps{
		Builds:     a.Builds,
		Executor:   executor.NewHeadless(a.Config.Executor.Binary, a.Fs.Deploy),
		Instrument: a.Instrument,
		Reporter:   reporter,
	}
	h, err := a.History()
	if err != nil {
		return nil, err
	} else if h != nil {
		deps.Recorder = h
	}
	return orchestrator.New(a.Config, a.Fs, deps)
}

func (a *App) Queue() (*orchestrator.Queue, error) {
	orch, err := a.Orchestrator()
	if err != nil {
		return nil, err
	}
	return orchestrator.NewQueue(orch, a.Config.Executor.PollInterval), nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
