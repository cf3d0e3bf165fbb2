// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ticket

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

const defaultExchange = "autotest-results"

// Amqp publishes tickets to a topic exchange, routed by ticket id, over a
// connection opened per submission.
type Amqp struct {
	url      string
	exchange string
}

func NewAmqp(cfg config.Ticket) *Amqp {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}
	return &Amqp{url: cfg.AmqpURL, exchange: exchange}
}

func (a Amqp) Submit(ctx context.Context, t Ticket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("unable to marshal ticket: %w", err)
	}

	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("unable to connect to broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("unable to open broker channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(a.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("unable to declare exchange %s: %w", a.exchange, err)
	}
	err = ch.PublishWithContext(ctx, a.exchange, t.Id, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("unable to publish ticket %s: %w", t.Id, err)
	}
	context.CtxGetLog(ctx).Info("Ticket published", "ticket", t.Id, "exchange", a.exchange)
	return nil
}
