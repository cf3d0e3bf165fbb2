// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ticket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

func TestNew(t *testing.T) {
	cfg := config.Defaults()
	r, err := New(&cfg)
	require.Nil(t, err)
	require.IsType(t, Noop{}, r)

	cfg.Flags.TicketPosting = true
	cfg.Ticket.Kind = "amqp"
	r, err = New(&cfg)
	require.Nil(t, err)
	require.Equal(t, defaultExchange, r.(*Amqp).exchange)

	cfg.Ticket.Kind = "jira"
	_, err = New(&cfg)
	require.NotNil(t, err)
}

func TestHttpSubmitWithToken(t *testing.T) {
	var got Ticket
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.Nil(t, r.ParseForm())
			require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok123","token_type":"bearer","expires_in":3600}`))
		case "/tickets":
			require.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
			require.Nil(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := NewHttp(config.Ticket{
		URL:          srv.URL + "/tickets",
		TokenURL:     srv.URL + "/token",
		ClientID:     "autotest",
		ClientSecret: "s3cret",
	})
	err := h.Submit(context.Background(), Ticket{Id: "CDG-T42", Summary: "Connect", Pass: 1, Log: "{}"})
	require.Nil(t, err)
	require.Equal(t, "CDG-T42", got.Id)
	require.Equal(t, 1, got.Pass)
}

func TestHttpSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad ticket"))
	}))
	defer srv.Close()

	err := NewHttp(config.Ticket{URL: srv.URL}).Submit(context.Background(), Ticket{Id: "CDG-T1"})
	require.ErrorContains(t, err, "HTTP_400")
}
