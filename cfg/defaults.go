// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import "time"

// GetDefaultLoggingConfig returns the default configuration that is to be
// used during process startup, before any configuration file or flags have
// been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultConfig returns a Config matching spec.md §6's documented
// defaults exactly, for use before BindFlags/viper has run (e.g. by callers
// of the xrdcl package that never touch cfg/cmd at all).
func GetDefaultConfig() *Config {
	allowAll, _ := NewGlobRegexList("*")
	denyNone, _ := NewGlobRegexList("")
	return &Config{
		Connect: ConnectConfig{
			ConnectTimeout:          60 * time.Second,
			RequestTimeout:          60 * time.Second,
			ReconnectTimeout:        20 * time.Second,
			FirstConnectMaxAttempts: 150,
			StartGCTask:             true,
			DomainAllowRe:           allowAll,
			DomainDenyRe:            denyNone,
		},
		Redirect: RedirectConfig{
			MaxRedirects:  255,
			CountWindow:   time.Hour,
			DomainAllowRe: allowAll,
			DomainDenyRe:  denyNone,
			GoAsync:       true,
		},
		ReadCache: ReadCacheConfig{
			SizeBytes:             0,
			ReadAheadSizeBytes:    1 << 20,
			BlockRemPolicy:        LRURemovalPolicy,
			PurgeWrittenBlocks:    false,
			BlockSizeBytes:        16 << 10,
			ReadAheadTriggerCount: 2,
		},
		Stream: StreamConfig{
			MultistreamCount: 1,
		},
		Logging: GetDefaultLoggingConfig(),
		Debug: DebugConfig{
			Level:                    0,
			ExitOnInvariantViolation: false,
		},
	}
}
