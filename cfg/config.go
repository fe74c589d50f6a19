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
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob named in spec.md §6's environment-variable/config
// surface. Field names and grouping follow the teacher's cfg.Config
// (one sub-struct per concern, yaml tags throughout).
type Config struct {
	Connect   ConnectConfig   `yaml:"connect"`
	Redirect  RedirectConfig  `yaml:"redirect"`
	ReadCache ReadCacheConfig `yaml:"read-cache"`
	Stream    StreamConfig    `yaml:"stream"`
	Logging   LoggingConfig   `yaml:"logging"`
	Debug     DebugConfig     `yaml:"debug"`
}

// ConnectConfig governs TCP connect/handshake/reconnect behavior.
type ConnectConfig struct {
	ConnectTimeout          time.Duration `yaml:"connect-timeout"`
	RequestTimeout          time.Duration `yaml:"request-timeout"`
	ReconnectTimeout        time.Duration `yaml:"reconnect-timeout"`
	FirstConnectMaxAttempts int           `yaml:"first-connect-max-attempts"`
	StartGCTask             bool          `yaml:"start-gc-task"`
	DomainAllowRe           GlobRegexList `yaml:"domain-allow-re"`
	DomainDenyRe            GlobRegexList `yaml:"domain-deny-re"`
}

// RedirectConfig governs the redirect/wait state machine in internal/engine.
type RedirectConfig struct {
	MaxRedirects int           `yaml:"max-redirects"`
	CountWindow  time.Duration `yaml:"count-window"`
	DomainAllowRe GlobRegexList `yaml:"domain-allow-re"`
	DomainDenyRe  GlobRegexList `yaml:"domain-deny-re"`
	GoAsync       bool          `yaml:"go-async"`
}

// ReadCacheConfig governs internal/readcache and the file handle's
// read-ahead policy.
type ReadCacheConfig struct {
	SizeBytes         ByteSize                `yaml:"size-bytes"`
	ReadAheadSizeBytes ByteSize               `yaml:"read-ahead-size-bytes"`
	BlockRemPolicy    CacheBlockRemovalPolicy `yaml:"block-removal-policy"`
	PurgeWrittenBlocks bool                   `yaml:"purge-written-blocks"`
	BlockSizeBytes    ByteSize                `yaml:"block-size-bytes"`
	ReadAheadTriggerCount int                 `yaml:"read-ahead-trigger-count"`
}

// StreamConfig governs the physical connection's optional multi-stream bind.
type StreamConfig struct {
	MultistreamCount int `yaml:"multistream-count"`
}

// LogRotateLoggingConfig configures lumberjack-backed log file rotation,
// same shape and defaults as the teacher's LogRotateLoggingConfig.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Severity  LogSeverity            `yaml:"severity"`
	Format    string                 `yaml:"format"`
	FilePath  ResolvedPath           `yaml:"file-path"`
	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// DebugConfig carries spec.md §6's debug_level plus teacher-style
// invariant-violation behavior for internal/connmgr's InvariantMutex-guarded
// state.
type DebugConfig struct {
	Level                    int  `yaml:"level"`
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
}

// BindFlags registers every Config flag on flagSet and binds it into viper,
// matching the structure of the teacher's generated cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.DurationP("connect-timeout", "", 60*time.Second, "Bound on TCP connect (spec.md connect_timeout).")
	if err = viper.BindPFlag("connect.connect-timeout", flagSet.Lookup("connect-timeout")); err != nil {
		return err
	}

	flagSet.DurationP("request-timeout", "", 60*time.Second, "Bound on every engine receive (spec.md request_timeout).")
	if err = viper.BindPFlag("connect.request-timeout", flagSet.Lookup("request-timeout")); err != nil {
		return err
	}

	flagSet.DurationP("reconnect-timeout", "", 20*time.Second, "Sleep before reconnect-and-replay after a socket error (spec.md reconnect_timeout).")
	if err = viper.BindPFlag("connect.reconnect-timeout", flagSet.Lookup("reconnect-timeout")); err != nil {
		return err
	}

	flagSet.IntP("first-connect-max-attempts", "", 150, "Rounds of candidate-endpoint retry on first connect (spec.md first_connect_max_attempts).")
	if err = viper.BindPFlag("connect.first-connect-max-attempts", flagSet.Lookup("first-connect-max-attempts")); err != nil {
		return err
	}

	flagSet.BoolP("start-gc-task", "", true, "Run the connection manager's 2-second physical-connection GC task (spec.md start_gc_task).")
	if err = viper.BindPFlag("connect.start-gc-task", flagSet.Lookup("start-gc-task")); err != nil {
		return err
	}

	flagSet.StringP("connect-domain-allow-re", "", "*", "Pipe-separated glob allow-list applied to a candidate endpoint's domain before first connect.")
	if err = viper.BindPFlag("connect.domain-allow-re", flagSet.Lookup("connect-domain-allow-re")); err != nil {
		return err
	}

	flagSet.StringP("connect-domain-deny-re", "", "", "Pipe-separated glob deny-list applied to a candidate endpoint's domain before first connect.")
	if err = viper.BindPFlag("connect.domain-deny-re", flagSet.Lookup("connect-domain-deny-re")); err != nil {
		return err
	}

	flagSet.IntP("max-redirects", "", 255, "Redirects allowed per rolling count window before too_many_redirects (spec.md max_redirects).")
	if err = viper.BindPFlag("redirect.max-redirects", flagSet.Lookup("max-redirects")); err != nil {
		return err
	}

	flagSet.DurationP("redir-count-window", "", time.Hour, "Rolling window redirects are counted over (spec.md redir_count_window).")
	if err = viper.BindPFlag("redirect.count-window", flagSet.Lookup("redir-count-window")); err != nil {
		return err
	}

	flagSet.StringP("redir-domain-allow-re", "", "*", "Pipe-separated glob allow-list a redirect target's domain must match (spec.md redir_domain_allow_re).")
	if err = viper.BindPFlag("redirect.domain-allow-re", flagSet.Lookup("redir-domain-allow-re")); err != nil {
		return err
	}

	flagSet.StringP("redir-domain-deny-re", "", "", "Pipe-separated glob deny-list a redirect target's domain must not match (spec.md redir_domain_deny_re).")
	if err = viper.BindPFlag("redirect.domain-deny-re", flagSet.Lookup("redir-domain-deny-re")); err != nil {
		return err
	}

	flagSet.BoolP("go-async", "", true, "Allow the server to answer waitresp via an async attn/asynresp frame (spec.md go_async).")
	if err = viper.BindPFlag("redirect.go-async", flagSet.Lookup("go-async")); err != nil {
		return err
	}

	flagSet.StringP("read-cache-size", "", "0", "Total read cache capacity in bytes, 0 disables caching (spec.md read_cache_size).")
	if err = viper.BindPFlag("read-cache.size-bytes", flagSet.Lookup("read-cache-size")); err != nil {
		return err
	}

	flagSet.StringP("read-ahead-size", "", "1Mi", "Read-ahead window size (spec.md read_ahead_size).")
	if err = viper.BindPFlag("read-cache.read-ahead-size-bytes", flagSet.Lookup("read-ahead-size")); err != nil {
		return err
	}

	flagSet.StringP("read-cache-block-rem-policy", "", "lru", "Cache eviction policy: lru or fifo (spec.md read_cache_block_rem_policy).")
	if err = viper.BindPFlag("read-cache.block-removal-policy", flagSet.Lookup("read-cache-block-rem-policy")); err != nil {
		return err
	}

	flagSet.BoolP("purge-written-blocks", "", false, "Drop cache entries covering bytes this process just wrote (spec.md purge_written_blocks).")
	if err = viper.BindPFlag("read-cache.purge-written-blocks", flagSet.Lookup("purge-written-blocks")); err != nil {
		return err
	}

	flagSet.StringP("read-ahead-block-size", "", "16Ki", "Minimum read-ahead alignment unit (spec.md §4.7, at least 16 KiB).")
	if err = viper.BindPFlag("read-cache.block-size-bytes", flagSet.Lookup("read-ahead-block-size")); err != nil {
		return err
	}

	flagSet.IntP("read-ahead-trigger-count", "", 2, "Consecutive sequential reads required before read-ahead activates (SPEC_FULL.md §12.2).")
	if err = viper.BindPFlag("read-cache.read-ahead-trigger-count", flagSet.Lookup("read-ahead-trigger-count")); err != nil {
		return err
	}

	flagSet.IntP("multistream-count", "", 1, "Parallel sockets bound to one logical session, 1 disables multi-stream (spec.md multistream_count).")
	if err = viper.BindPFlag("stream.multistream-count", flagSet.Lookup("multistream-count")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log line encoding: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-file-size-mb", "", 512, "Rotate the log file after it exceeds this size.")
	if err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-rotate-max-file-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "Rotated log files retained, 0 retains all.")
	if err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-rotate-backup-file-count")); err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Gzip rotated log files.")
	if err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-rotate-compress")); err != nil {
		return err
	}

	flagSet.IntP("debug-level", "", 0, "Verbosity of internal frame/fault tracing (spec.md debug_level).")
	if err = viper.BindPFlag("debug.level", flagSet.Lookup("debug-level")); err != nil {
		return err
	}

	flagSet.BoolP("debug-exit-on-invariant-violation", "", false, "Exit when an InvariantMutex-guarded invariant is violated, instead of just logging.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-exit-on-invariant-violation")); err != nil {
		return err
	}

	return nil
}
