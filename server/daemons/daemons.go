// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package daemons

import (
	"sync"

	"github.com/foundriesio/fw-autotest/context"
)

type daemonFunc func(ctx context.Context, stop chan bool)

type daemons struct {
	ctx     context.Context
	daemons []daemonFunc
	stops   []chan bool
	wg      sync.WaitGroup
}

type Option func(*daemons)

// Daemons are background loops started and stopped together by the server.
type Daemons interface {
	Start()
	Shutdown()
}

func New(ctx context.Context, opts ...Option) Daemons {
	d := &daemons{ctx: ctx}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *daemons) Start() {
	for _, fn := range d.daemons {
		stop := make(chan bool)
		d.stops = append(d.stops, stop)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			fn(d.ctx, stop)
		}()
	}
}

// Shutdown signals every daemon and waits for all of them to return.
func (d *daemons) Shutdown() {
	for _, stop := range d.stops {
		close(stop)
	}
	d.wg.Wait()
	d.stops = nil
}
