// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/foundriesio/fw-autotest/config"
)

type User interface {
	Id() string
	Scopes() Scopes
}

// AuthUserFunc authenticates an incoming request. A nil User means the
// function already wrote the error response.
type AuthUserFunc func(w http.ResponseWriter, r *http.Request) (User, error)

type tokenUser struct {
	name   string
	digest []byte
	scopes Scopes
}

func (u tokenUser) Id() string {
	return u.name
}

func (u tokenUser) Scopes() Scopes {
	return u.scopes
}

// anonymous is used when no tokens are configured.
var anonymous = tokenUser{name: "anonymous", scopes: ScopeAll}

func NoAuth(http.ResponseWriter, *http.Request) (User, error) {
	return anonymous, nil
}

// NewTokenAuth checks "Authorization: Bearer <token>" against the configured
// token digests. No tokens configured disables authentication.
func NewTokenAuth(tokens []config.ApiToken) (AuthUserFunc, error) {
	if len(tokens) == 0 {
		return NoAuth, nil
	}
	users := make([]tokenUser, 0, len(tokens))
	for _, t := range tokens {
		digest, err := hex.DecodeString(t.Sha256)
		if err != nil || len(digest) != sha256.Size {
			return nil, fmt.Errorf("token %s: sha256 must be a hex encoded digest", t.Name)
		}
		scopes, err := ScopesFromString(t.Scopes)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", t.Name, err)
		}
		users = append(users, tokenUser{name: t.Name, digest: digest, scopes: scopes})
	}

	return func(w http.ResponseWriter, r *http.Request) (User, error) {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return nil, nil
		}
		sum := sha256.Sum256([]byte(parts[1]))
		for _, u := range users {
			if subtle.ConstantTimeCompare(sum[:], u.digest) == 1 {
				return u, nil
			}
		}
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, nil
	}, nil
}

// HasScope returns an error naming the missing scope.
func HasScope(u User, scope Scopes) error {
	if !u.Scopes().Has(scope) {
		return fmt.Errorf("user %s lacks scope %s", u.Id(), scope)
	}
	return nil
}
