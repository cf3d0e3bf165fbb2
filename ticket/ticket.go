// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package ticket posts test results to an external ticketing system.
package ticket

import (
	"fmt"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

// Ticket is one result submission, keyed by the test case identifier of the
// ticketing system.
type Ticket struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
	Case    string `json:"case"`
	Pass    int    `json:"pass"`
	Fail    int    `json:"fail"`
	Log     string `json:"log"`
}

// Reporter submits tickets. Callers treat failures as non-fatal.
type Reporter interface {
	Submit(ctx context.Context, t Ticket) error
}

// New picks the reporter for the configured kind. Ticket posting disabled
// always yields Noop.
func New(cfg *config.Config) (Reporter, error) {
	if !cfg.Flags.TicketPosting {
		return Noop{}, nil
	}
	switch cfg.Ticket.Kind {
	case "http":
		return NewHttp(cfg.Ticket), nil
	case "amqp":
		return NewAmqp(cfg.Ticket), nil
	case "", "none":
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown ticket kind: %s", cfg.Ticket.Kind)
}

type Noop struct{}

func (Noop) Submit(ctx context.Context, t Ticket) error {
	context.CtxGetLog(ctx).Debug("Ticket posting disabled", "ticket", t.Id)
	return nil
}
