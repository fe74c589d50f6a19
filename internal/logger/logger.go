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

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xrootd-go/xrdcl/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// loggerFactory owns the current logging destination and format so that
// InitLogFile/SetLogFormat can rebuild defaultLogger without callers having
// to pass a *slog.Logger around every internal package.
type loggerFactory struct {
	file            *os.File
	writer          io.Writer
	format          string
	level           cfg.LogSeverity
	logRotateConfig cfg.LogRotateLoggingConfig
	programLevel    *slog.LevelVar
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	return newHandler(w, programLevel, f.format, prefix)
}

var defaultLoggerFactory *loggerFactory
var defaultLogger *slog.Logger

func init() {
	programLevel := new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{
		writer:       os.Stderr,
		format:       "text",
		level:        cfg.InfoLogSeverity,
		programLevel: programLevel,
	}
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
}

// InitLogFile switches the default logger onto a rotating file sink built
// from loggingCfg. A blank FilePath leaves the logger writing to stderr.
func InitLogFile(loggingCfg cfg.LoggingConfig) error {
	if loggingCfg.FilePath == "" {
		return nil
	}

	f, err := os.OpenFile(string(loggingCfg.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", loggingCfg.FilePath, err)
	}

	lj := &lumberjack.Logger{
		Filename:   string(loggingCfg.FilePath),
		MaxSize:    loggingCfg.LogRotate.MaxFileSizeMb,
		MaxBackups: loggingCfg.LogRotate.BackupFileCount,
		Compress:   loggingCfg.LogRotate.Compress,
	}
	async := NewAsyncLogger(lj, 1000)

	programLevel := new(slog.LevelVar)
	setLoggingLevel(loggingCfg.Severity, programLevel)

	defaultLoggerFactory = &loggerFactory{
		file:            f,
		writer:          async,
		format:          loggingCfg.Format,
		level:           loggingCfg.Severity,
		logRotateConfig: loggingCfg.LogRotate,
		programLevel:    programLevel,
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(async, programLevel, ""))
	return nil
}

// SetLogFormat switches between "text" and "json" rendering without
// touching the current destination or severity.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer, defaultLoggerFactory.programLevel, ""))
}

func logf(level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { logf(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }
