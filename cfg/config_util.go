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

import "runtime"

// DefaultMaxParallelOpens bounds the file handle's parallel-open semaphore
// (spec.md §4.8, "a small number (~100)"), scaled down on small machines.
func DefaultMaxParallelOpens() int {
	return min(100, max(16, 4*runtime.NumCPU()))
}

// IsReadCacheEnabled reports whether the per-file read cache is active.
func IsReadCacheEnabled(c *Config) bool {
	return c.ReadCache.SizeBytes > 0
}

// IsMultistreamEnabled reports whether the physical connection should bind
// extra parallel sockets (spec.md §4.3 "Multi-stream bind").
func IsMultistreamEnabled(c *Config) bool {
	return c.Stream.MultistreamCount > 1
}
