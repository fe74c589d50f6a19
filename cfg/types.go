// Copyright 2024 Google LLC
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
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// LogSeverity represents the logging severity and can accept the following
// values: "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF".
type LogSeverity string

// Constants for all supported log severities.
const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

// severityRanking maps each level to an integer for validation and comparison.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

func (l LogSeverity) MarshalText() ([]byte, error) {
	return []byte(string(l)), nil
}

// Rank returns the integer representation of the severity rank.
// Returns -1 if the severity is unknown.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	// This case should ideally not be reached as LogSeverity configs are validated before use.
	return -1
}

// ByteSize is the datatype for params such as read-cache.size-bytes that
// accept either a plain byte count or a "Ki"/"Mi"/"Gi"-suffixed shorthand
// (e.g. "16Ki", "1Mi"), matching spec.md §6's read_cache_size/read_ahead_size.
type ByteSize int64

var byteSizeSuffixes = []struct {
	suffix string
	factor int64
}{
	{"Gi", 1 << 30},
	{"Mi", 1 << 20},
	{"Ki", 1 << 10},
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	for _, suf := range byteSizeSuffixes {
		if strings.HasSuffix(s, suf.suffix) {
			n, err := strconv.ParseInt(strings.TrimSuffix(s, suf.suffix), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			*b = ByteSize(n * suf.factor)
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(b), 10)), nil
}

// GlobRegexList is the datatype for the redirect/connect domain allow/deny
// lists: a "|"-separated list of "*"-anchored glob patterns, e.g.
// "good.example|*.good.example|*" (spec.md §6). Each glob is compiled into an
// anchored regexp at unmarshal time so Match is a linear scan, no allocation.
type GlobRegexList struct {
	raw      string
	compiled []*regexp.Regexp
	matchAll bool
}

// NewGlobRegexList parses a pipe-separated glob list outside of the viper
// decode path, e.g. for the defaults in defaults.go.
func NewGlobRegexList(pipeSeparated string) (GlobRegexList, error) {
	var g GlobRegexList
	if err := g.UnmarshalText([]byte(pipeSeparated)); err != nil {
		return GlobRegexList{}, err
	}
	return g, nil
}

func (g *GlobRegexList) UnmarshalText(text []byte) error {
	s := string(text)
	g.raw = s
	g.compiled = nil
	g.matchAll = false
	if s == "" {
		return nil
	}
	for _, glob := range strings.Split(s, "|") {
		if glob == "" {
			continue
		}
		if glob == "*" {
			g.matchAll = true
			continue
		}
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(glob), `\*`, `.*`) + "$"
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid glob %q in domain list %q: %w", glob, s, err)
		}
		g.compiled = append(g.compiled, re)
	}
	return nil
}

func (g GlobRegexList) MarshalText() ([]byte, error) {
	return []byte(g.raw), nil
}

func (g GlobRegexList) String() string { return g.raw }

// Match reports whether domain matches any glob in the list.
func (g GlobRegexList) Match(domain string) bool {
	if g.matchAll {
		return true
	}
	for _, re := range g.compiled {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// ResolvedPath is a filesystem path resolved to an absolute, cleaned form at
// config-decode time. Grounded on the teacher's own ResolvedPath (there
// anchored to GCSFUSE_PARENT_PROCESS_DIR); this core has no parent-process
// indirection to honor, so relative paths are simply anchored to the cwd.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	path, err := resolvePath(string(text))
	if err != nil {
		return err
	}
	*p = ResolvedPath(path)
	return nil
}

// CacheBlockRemovalPolicy names the read cache's eviction policy
// (spec.md §6 read_cache_block_rem_policy, spec.md §4.7 make_room).
type CacheBlockRemovalPolicy string

const (
	LRURemovalPolicy  CacheBlockRemovalPolicy = "lru"
	FIFORemovalPolicy CacheBlockRemovalPolicy = "fifo"
)

func (p *CacheBlockRemovalPolicy) UnmarshalText(text []byte) error {
	v := CacheBlockRemovalPolicy(strings.ToLower(string(text)))
	if !slices.Contains([]CacheBlockRemovalPolicy{LRURemovalPolicy, FIFORemovalPolicy}, v) {
		return fmt.Errorf("invalid read-cache.block-removal-policy: %s", text)
	}
	*p = v
	return nil
}
