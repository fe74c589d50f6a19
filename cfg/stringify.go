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

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// String renders the config for a single startup log line. There is
// nothing in Config that needs redaction (no credentials pass through this
// struct — auth blobs are opaque and handled by the AuthOracle collaborator)
// so this is a plain dump, not a redacting one.
func (c *Config) String() string {
	return fmt.Sprintf(
		"connect{timeout=%s request-timeout=%s reconnect=%s first-connect-attempts=%d gc=%t} "+
			"redirect{max=%d window=%s go-async=%t} "+
			"read-cache{size=%d read-ahead=%d block=%d policy=%s purge-written=%t} "+
			"stream{multistream=%d} logging{severity=%s format=%s}",
		c.Connect.ConnectTimeout, c.Connect.RequestTimeout, c.Connect.ReconnectTimeout,
		c.Connect.FirstConnectMaxAttempts, c.Connect.StartGCTask,
		c.Redirect.MaxRedirects, c.Redirect.CountWindow, c.Redirect.GoAsync,
		c.ReadCache.SizeBytes, c.ReadCache.ReadAheadSizeBytes, c.ReadCache.BlockSizeBytes,
		c.ReadCache.BlockRemPolicy, c.ReadCache.PurgeWrittenBlocks,
		c.Stream.MultistreamCount, c.Logging.Severity, c.Logging.Format,
	)
}

// YAML renders the full config tree (the same shape a config file
// overlays) for a --print-config-style debug dump, using the yaml tags
// Config's fields already carry for viper's file-reading side.
func (c *Config) YAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshalling config to yaml: %w", err)
	}
	return string(b), nil
}
