// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package server

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"golang.org/x/time/rate"

	"github.com/foundriesio/fw-autotest/context"
)

func NewEchoServer(name string, logger *slog.Logger) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Use(contextLogger(logger))
	server.Use(middlewareLogger(name))

	return server
}

func middlewareLogger(name string) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		HandleError:      true, // forwards error to the global error handler, so it can decide appropriate status code
		LogContentLength: true,
		LogError:         true,
		LogLatency:       true,
		LogMethod:        true,
		LogStatus:        true,
		LogURI:           true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log := context.CtxGetLog(c.Request().Context())
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error == nil {
				log.LogAttrs(context.Background(), slog.LevelInfo, name, attrs...)
			} else {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
				log.LogAttrs(context.Background(), slog.LevelError, name, attrs...)
			}
			return nil
		},
	})
}

func contextLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = random.String(12)
			}
			res.Header().Set(echo.HeaderXRequestID, rid)
			ctx := context.CtxWithLog(req.Context(), log.With("req_id", rid, "uri", req.RequestURI))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// RateLimiter allows perSecond requests per client IP. Zero or less falls
// back to one request per second.
func RateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := max(1, int(perSecond))
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(perSecond),
				Burst:     burst,
				ExpiresIn: 2 * time.Minute,
			},
		),
	})
}
