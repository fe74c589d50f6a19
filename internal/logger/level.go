// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger wraps log/slog with a TRACE level below slog's built-in
// Debug, text/JSON output matching the teacher's severity-first formatting,
// and an optional lumberjack-backed rotating file sink.
package logger

import (
	"log/slog"

	"github.com/xrootd-go/xrdcl/cfg"
)

// slog's built-in levels only go down to Debug (-4). xrootd's client side
// distinguishes wire-level tracing (every frame sent/received) from
// debug-level tracing (state machine transitions), so TRACE sits one rung
// below Debug.
const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = 12
)

var levelStrings = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

func levelString(l slog.Level) string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return l.String()
}

// severityToLevel maps a cfg.LogSeverity onto the slog.Level that makes the
// handler emit records at and above that severity.
func severityToLevel(s cfg.LogSeverity) slog.Level {
	switch s {
	case cfg.TraceLogSeverity:
		return LevelTrace
	case cfg.DebugLogSeverity:
		return LevelDebug
	case cfg.InfoLogSeverity:
		return LevelInfo
	case cfg.WarningLogSeverity:
		return LevelWarn
	case cfg.ErrorLogSeverity:
		return LevelError
	case cfg.OffLogSeverity:
		return LevelOff
	default:
		return LevelInfo
	}
}

// setLoggingLevel updates programLevel in place to match severity.
func setLoggingLevel(severity cfg.LogSeverity, programLevel *slog.LevelVar) {
	programLevel.Set(severityToLevel(severity))
}
