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

package extreme

import "sync"

// stealThreshold is the maximum number of distinct requesters a block may
// already have before it is no longer eligible to be stolen, per spec
// §4.9's "requested by <=2 others and not by us".
const stealThreshold = 2

type blockState int

const (
	blockFree blockState = iota
	blockRequested
	blockDone
)

type block struct {
	state       blockState
	requesters  map[int]bool
	requestedAt int64
}

// Plan is the shared block-partition state every source's worker contends
// over: ceil(size / blockSize) fixed-size blocks, the last possibly
// shorter, per spec §4.9.
type Plan struct {
	size      int64
	blockSize int64

	mu      sync.Mutex
	blocks  []*block
	done    int
	reqSeq  int64
}

// NewPlan builds a partition plan for a file of the given size, using
// blockSize as the fixed block length (the spec's extreme-read block size
// is 4x the read-cache block size; callers pass that already-scaled value).
func NewPlan(size, blockSize int64) *Plan {
	if blockSize <= 0 {
		blockSize = 1
	}
	n := (size + blockSize - 1) / blockSize
	if n <= 0 {
		n = 1
	}
	blocks := make([]*block, n)
	for i := range blocks {
		blocks[i] = &block{requesters: make(map[int]bool)}
	}
	return &Plan{size: size, blockSize: blockSize, blocks: blocks}
}

// NumBlocks returns the total block count.
func (p *Plan) NumBlocks() int { return len(p.blocks) }

// BlockRange returns the byte range [begin, end) for a block index.
func (p *Plan) BlockRange(idx int) (begin, end int64) {
	begin = int64(idx) * p.blockSize
	end = begin + p.blockSize
	if end > p.size {
		end = p.size
	}
	return begin, end
}

// GetBlockToPrefetch implements get_block_to_prefetch(cursor, idx): the
// first free block at or after cursor (wrapping), or — if none is free —
// the least-recently-requested block with at most stealThreshold
// requesters that idx hasn't already requested. Returns -1 if nothing is
// eligible.
func (p *Plan) GetBlockToPrefetch(cursor, idx int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.blocks)
	for i := 0; i < n; i++ {
		b := (cursor + i) % n
		if p.blocks[b].state == blockFree {
			p.markRequestedLocked(b, idx)
			return b
		}
	}

	best := -1
	var bestAt int64
	for i := 0; i < n; i++ {
		b := (cursor + i) % n
		blk := p.blocks[b]
		if blk.state != blockRequested || blk.requesters[idx] || len(blk.requesters) > stealThreshold {
			continue
		}
		if best == -1 || blk.requestedAt < bestAt {
			best = b
			bestAt = blk.requestedAt
		}
	}
	if best >= 0 {
		p.markRequestedLocked(best, idx)
	}
	return best
}

func (p *Plan) markRequestedLocked(b, idx int) {
	blk := p.blocks[b]
	blk.state = blockRequested
	blk.requesters[idx] = true
	p.reqSeq++
	blk.requestedAt = p.reqSeq
}

// GetBlockToRead implements get_block_to_read(cursor, idx): a block idx
// has itself requested that isn't done yet, nearest cursor. Returns -1 if
// idx has nothing outstanding.
func (p *Plan) GetBlockToRead(cursor, idx int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.blocks)
	for i := 0; i < n; i++ {
		b := (cursor + i) % n
		blk := p.blocks[b]
		if blk.state == blockRequested && blk.requesters[idx] {
			return b
		}
	}
	return -1
}

// MarkReadResult is mark_read's tri-state verdict.
type MarkReadResult int

const (
	// ReadPenalty means another worker already finished this block first;
	// the caller's freshly read buffer must be discarded.
	ReadPenalty MarkReadResult = -1
	// ReadNeutral means this worker was the block's only requester.
	ReadNeutral MarkReadResult = 0
	// ReadReward means multiple workers raced for this block and the
	// caller won.
	ReadReward MarkReadResult = 1
)

// MarkRead implements mark_read(block_idx).
func (p *Plan) MarkRead(idx int) MarkReadResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	blk := p.blocks[idx]
	if blk.state == blockDone {
		return ReadPenalty
	}
	contested := len(blk.requesters) > 1
	blk.state = blockDone
	p.done++
	if contested {
		return ReadReward
	}
	return ReadNeutral
}

// AllDone reports whether every block has been marked done.
func (p *Plan) AllDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done >= len(p.blocks)
}

// IsBlockDone reports whether idx has already been fully read by some
// worker's synchronous read, letting another worker's now-stale prefetch
// for the same block be discarded rather than delivered twice.
func (p *Plan) IsBlockDone(idx int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocks[idx].state == blockDone
}
