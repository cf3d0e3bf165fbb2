// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ticket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

// Http posts tickets as JSON. With a token URL configured, requests carry an
// OAuth2 client-credentials token.
type Http struct {
	cfg config.Ticket
}

func NewHttp(cfg config.Ticket) *Http {
	return &Http{cfg: cfg}
}

func (h Http) client(ctx context.Context) *http.Client {
	if h.cfg.TokenURL == "" {
		return http.DefaultClient
	}
	cc := clientcredentials.Config{
		ClientID:     h.cfg.ClientID,
		ClientSecret: h.cfg.ClientSecret,
		TokenURL:     h.cfg.TokenURL,
	}
	return cc.Client(ctx)
}

func (h Http) Submit(ctx context.Context, t Ticket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("unable to marshal ticket: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to create ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := h.client(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("unable to post ticket %s: %w", t.Id, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("ticket %s rejected: HTTP_%d - %s", t.Id, res.StatusCode, msg)
	}
	context.CtxGetLog(ctx).Info("Ticket posted", "ticket", t.Id)
	return nil
}
