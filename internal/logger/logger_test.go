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
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	textTraceString   = `^time="[a-zA-Z0-9/:. ]{26}" severity=TRACE message="TestLogs: www.traceExample.com"`
	textDebugString   = `^time="[a-zA-Z0-9/:. ]{26}" severity=DEBUG message="TestLogs: www.debugExample.com"`
	textInfoString    = `^time="[a-zA-Z0-9/:. ]{26}" severity=INFO message="TestLogs: www.infoExample.com"`
	textWarningString = `^time="[a-zA-Z0-9/:. ]{26}" severity=WARNING message="TestLogs: www.warningExample.com"`
	textErrorString   = `^time="[a-zA-Z0-9/:. ]{26}" severity=ERROR message="TestLogs: www.errorExample.com"`

	jsonTraceString   = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"TRACE","message":"TestLogs: www.traceExample.com"}`
	jsonDebugString   = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"DEBUG","message":"TestLogs: www.debugExample.com"}`
	jsonInfoString    = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"INFO","message":"TestLogs: www.infoExample.com"}`
	jsonWarningString = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"WARNING","message":"TestLogs: www.warningExample.com"}`
	jsonErrorString   = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"ERROR","message":"TestLogs: www.errorExample.com"}`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, format string, severity cfg.LogSeverity) {
	programLevel := new(slog.LevelVar)
	setLoggingLevel(severity, programLevel)
	defaultLoggerFactory = &loggerFactory{writer: buf, format: format, level: severity, programLevel: programLevel}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, "TestLogs: "))
}

func getTestLoggingFunctions() []func() {
	return []func(){
		func() { Tracef("www.traceExample.com") },
		func() { Debugf("www.debugExample.com") },
		func() { Infof("www.infoExample.com") },
		func() { Warnf("www.warningExample.com") },
		func() { Errorf("www.errorExample.com") },
	}
}

func fetchLogOutputForSpecifiedSeverityLevel(format string, severity cfg.LogSeverity) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, format, severity)

	var output []string
	for _, f := range getTestLoggingFunctions() {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func validateOutput(t *testing.T, expected, output []string) {
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
			continue
		}
		assert.Regexp(t, regexp.MustCompile(expected[i]), output[i])
	}
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelOFF() {
	validateOutput(t.T(), []string{"", "", "", "", ""}, fetchLogOutputForSpecifiedSeverityLevel("text", cfg.OffLogSeverity))
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelERROR() {
	validateOutput(t.T(), []string{"", "", "", "", textErrorString}, fetchLogOutputForSpecifiedSeverityLevel("text", cfg.ErrorLogSeverity))
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelWARNING() {
	validateOutput(t.T(), []string{"", "", "", textWarningString, textErrorString}, fetchLogOutputForSpecifiedSeverityLevel("text", cfg.WarningLogSeverity))
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelINFO() {
	validateOutput(t.T(), []string{"", "", textInfoString, textWarningString, textErrorString}, fetchLogOutputForSpecifiedSeverityLevel("text", cfg.InfoLogSeverity))
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelDEBUG() {
	validateOutput(t.T(), []string{"", textDebugString, textInfoString, textWarningString, textErrorString}, fetchLogOutputForSpecifiedSeverityLevel("text", cfg.DebugLogSeverity))
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelTRACE() {
	validateOutput(t.T(), []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString}, fetchLogOutputForSpecifiedSeverityLevel("text", cfg.TraceLogSeverity))
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelINFO() {
	validateOutput(t.T(), []string{"", "", jsonInfoString, jsonWarningString, jsonErrorString}, fetchLogOutputForSpecifiedSeverityLevel("json", cfg.InfoLogSeverity))
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelTRACE() {
	validateOutput(t.T(), []string{jsonTraceString, jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString}, fetchLogOutputForSpecifiedSeverityLevel("json", cfg.TraceLogSeverity))
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		severity      cfg.LogSeverity
		expectedLevel slog.Level
	}{
		{cfg.TraceLogSeverity, LevelTrace},
		{cfg.DebugLogSeverity, LevelDebug},
		{cfg.WarningLogSeverity, LevelWarn},
		{cfg.ErrorLogSeverity, LevelError},
		{cfg.OffLogSeverity, LevelOff},
	}
	for _, tc := range testData {
		programLevel := new(slog.LevelVar)
		setLoggingLevel(tc.severity, programLevel)
		assert.Equal(t.T(), tc.expectedLevel, programLevel.Level())
	}
}

func (t *LoggerTest) TestInitLogFile() {
	dir := t.T().TempDir()
	filePath := filepath.Join(dir, "log.txt")
	loggingCfg := cfg.LoggingConfig{
		FilePath: cfg.ResolvedPath(filePath),
		Severity: cfg.DebugLogSeverity,
		Format:   "text",
		LogRotate: cfg.LogRotateLoggingConfig{
			MaxFileSizeMb:   100,
			BackupFileCount: 2,
			Compress:        true,
		},
	}

	err := InitLogFile(loggingCfg)

	require.NoError(t.T(), err)
	assert.Equal(t.T(), filePath, defaultLoggerFactory.file.Name())
	assert.Equal(t.T(), "text", defaultLoggerFactory.format)
	assert.Equal(t.T(), cfg.DebugLogSeverity, defaultLoggerFactory.level)
	assert.Equal(t.T(), 100, defaultLoggerFactory.logRotateConfig.MaxFileSizeMb)
	assert.Equal(t.T(), 2, defaultLoggerFactory.logRotateConfig.BackupFileCount)
	assert.True(t.T(), defaultLoggerFactory.logRotateConfig.Compress)

	os.Remove(filePath)
}

func (t *LoggerTest) TestSetLogFormat() {
	var buf bytes.Buffer
	programLevel := new(slog.LevelVar)
	setLoggingLevel(cfg.InfoLogSeverity, programLevel)
	defaultLoggerFactory = &loggerFactory{writer: &buf, format: "text", level: cfg.InfoLogSeverity, programLevel: programLevel}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(&buf, programLevel, ""))

	SetLogFormat("json")

	assert.Equal(t.T(), "json", defaultLoggerFactory.format)
	Infof("hello")
	assert.Regexp(t.T(), regexp.MustCompile(`"severity":"INFO","message":"hello"`), buf.String())
}
