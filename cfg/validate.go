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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("log-rotate.max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("log-rotate.backup-file-count should be 0 (retain all) or positive")
	}
	return nil
}

func isValidConnectConfig(c *ConnectConfig) error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect.connect-timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("connect.request-timeout must be positive")
	}
	if c.FirstConnectMaxAttempts < 1 {
		return fmt.Errorf("connect.first-connect-max-attempts must be at least 1")
	}
	return nil
}

func isValidRedirectConfig(c *RedirectConfig) error {
	if c.MaxRedirects < 1 {
		return fmt.Errorf("redirect.max-redirects must be at least 1")
	}
	if c.CountWindow <= 0 {
		return fmt.Errorf("redirect.count-window must be positive")
	}
	return nil
}

func isValidReadCacheConfig(c *ReadCacheConfig) error {
	if c.SizeBytes < 0 {
		return fmt.Errorf("read-cache.size-bytes cannot be negative")
	}
	if c.ReadAheadSizeBytes < 0 {
		return fmt.Errorf("read-cache.read-ahead-size-bytes cannot be negative")
	}
	if c.BlockSizeBytes < 16<<10 {
		return fmt.Errorf("read-cache.block-size-bytes must be at least 16KiB per spec.md §4.7")
	}
	return nil
}

func isValidStreamConfig(c *StreamConfig) error {
	if c.MultistreamCount < 1 {
		return fmt.Errorf("stream.multistream-count must be at least 1")
	}
	if c.MultistreamCount > 1 {
		return fmt.Errorf("stream.multistream-count must be 1: multi-stream bind is not implemented in this build (see DESIGN.md)")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if err := isValidConnectConfig(&config.Connect); err != nil {
		return fmt.Errorf("error parsing connect config: %w", err)
	}
	if err := isValidRedirectConfig(&config.Redirect); err != nil {
		return fmt.Errorf("error parsing redirect config: %w", err)
	}
	if err := isValidReadCacheConfig(&config.ReadCache); err != nil {
		return fmt.Errorf("error parsing read-cache config: %w", err)
	}
	if err := isValidStreamConfig(&config.Stream); err != nil {
		return fmt.Errorf("error parsing stream config: %w", err)
	}
	return nil
}
