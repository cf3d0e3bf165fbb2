// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package context

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

var levelMap = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func ParseLevel(level string) (slog.Level, error) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
		if level == "" {
			level = "info"
		}
	}
	logLevel, ok := levelMap[strings.ToLower(level)]
	if !ok {
		var valid []string
		for k := range levelMap {
			valid = append(valid, k)
		}
		return 0, fmt.Errorf("invalid log level: %s; supported: %s", level, strings.Join(valid, ", "))
	}
	return logLevel, nil
}

// InitLogger builds the process logger and installs it as the slog default.
// Terminals get a colored text handler; anything else gets JSON.
func InitLogger(level string, w io.Writer) (*slog.Logger, error) {
	logLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			NoColor:    runtime.GOOS == "windows",
			TimeFormat: "15:04:05",
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	// Stray standard log calls are kept at Warn so they stand out.
	_ = slog.SetLogLoggerLevel(slog.LevelWarn)
	return logger, nil
}
