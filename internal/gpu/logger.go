// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/tmatch"
)

// loggerPtr holds a package-specific logger. When unset, logging goes to
// tmatch.Logger() so that tmatch.SetLogger covers this package too.
var loggerPtr atomic.Pointer[slog.Logger]

// slogger returns the current package logger.
// All logging in internal/gpu goes through this function.
func slogger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return tmatch.Logger()
}

// SetLogger overrides the logger for the GPU backend only.
// Pass nil to follow tmatch.Logger() again.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(l)
}
