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

package readcache

import "github.com/xrootd-go/xrdcl/cfg"

const minBlockSize = 16 << 10

// Plan is the read-ahead range the file handle's read should submit a
// placeholder for and issue an async read against, per spec §4.7's
// ra_offset/ra_len formula.
type Plan struct {
	Offset int64
	Length int64
}

// PlanReadAhead computes the next read-ahead range for a cache hit on
// [offset, offset+len), given the last read-ahead offset already issued
// and the configured read_ahead_size/block_size. It returns ok=false when
// there is nothing left to prefetch.
func PlanReadAhead(c *cfg.Config, offset, length, readAheadLast int64) (Plan, bool) {
	end := offset + length
	raOffset := end
	if readAheadLast > raOffset {
		raOffset = readAheadLast
	}
	raSize := int64(c.ReadCache.ReadAheadSizeBytes)
	raLen := raSize - (raOffset - end)
	if raLen <= 0 {
		return Plan{}, false
	}
	if raLen > raSize {
		raLen = raSize
	}

	blockSize := int64(c.ReadCache.BlockSizeBytes)
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}
	raLen = alignUp(raLen, blockSize)

	if cap := int64(c.ReadCache.SizeBytes); cap > 0 && raLen > cap {
		raLen = cap
	}
	if raLen <= 0 {
		return Plan{}, false
	}
	return Plan{Offset: raOffset, Length: raLen}, true
}

func alignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}
