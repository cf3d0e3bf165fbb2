// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/foundriesio/fw-autotest/auth"
	"github.com/foundriesio/fw-autotest/context"
)

func authUser(authFunc auth.AuthUserFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := authFunc(c.Response().Writer, c.Request())
			if user == nil || err != nil {
				return err
			}
			c.Set("user", user)

			req := c.Request()
			ctx := req.Context()
			ctx = context.CtxWithLog(ctx, CtxGetLog(ctx).With("user", user.Id()))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// requireScope answers 403 when the authenticated user lacks scope. The
// returned error gets the refusal logged.
func requireScope(scope auth.Scopes) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.Get("user").(auth.User)
			if err := auth.HasScope(user, scope); err != nil {
				if err2 := c.String(http.StatusForbidden, err.Error()); err2 != nil {
					return errors.Join(err, err2)
				}
				return err
			}
			return next(c)
		}
	}
}
