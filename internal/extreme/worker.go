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

import (
	"context"
	"sync"
	"time"

	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/metrics"
)

// maxOutstandingCeiling is max_outstanding's reward-driven upper bound.
const maxOutstandingCeiling = 20

// initialMaxOutstanding is a worker's starting budget; the spec names the
// ceiling (20) and the floor (1, after a zero-reset) but not a starting
// value, so this picks a conservative middle ground.
const initialMaxOutstanding = 4

// source is the subset of *xrdfile.File the extreme reader depends on. A
// narrow interface here, rather than the concrete type, keeps worker tests
// free of the full connmgr/engine stack.
type source interface {
	ReadDirect(ctx context.Context, offset int64, length int32) ([]byte, error)
}

// BlockResult is one fully-read block handed to the output queue.
type BlockResult struct {
	Index      int
	Begin, End int64
	Data       []byte
}

// fetchResult is one prefetch goroutine's outcome, handed off through its
// block's entry in the worker's pending map.
type fetchResult struct {
	data []byte
	err  error
}

// RunWorker implements spec §4.9's per-source worker loop: prefetch up to
// max_outstanding blocks (stealing from contested blocks once nothing is
// free), read one assigned block synchronously, and adjust max_outstanding
// from mark_read's reward/penalty verdict, until the plan is exhausted. The
// synchronous read of a block this worker already has a prefetch in flight
// for waits on that same prefetch rather than issuing a second fetch.
func RunWorker(ctx context.Context, plan *Plan, src source, idx, numSources int, clk clock.Clock, mh metrics.ExtremeMetricHandle, out *BoundedQueue[BlockResult]) error {
	cursor := idx * plan.NumBlocks() / numSources
	if cursor < 0 {
		cursor = 0
	}

	maxOutstanding := initialMaxOutstanding
	var wg sync.WaitGroup
	defer wg.Wait()

	var pendingMu sync.Mutex
	pending := make(map[int]chan fetchResult)
	wake := make(chan struct{}, maxOutstandingCeiling)

	launch := func(blk int, begin, end int64) {
		ch := make(chan fetchResult, 1)
		pendingMu.Lock()
		pending[blk] = ch
		pendingMu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := src.ReadDirect(ctx, begin, int32(end-begin))
			ch <- fetchResult{data: data, err: err}
			select {
			case wake <- struct{}{}:
			default:
			}
		}()
	}

	outstandingCount := func() int {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		return len(pending)
	}

	// reap drops completed prefetches for blocks another worker already
	// finished first, so a stolen block's now-useless bytes don't sit in
	// pending forever.
	reap := func() {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		for blk, ch := range pending {
			if !plan.IsBlockDone(blk) {
				continue
			}
			select {
			case <-ch:
			default:
			}
			delete(pending, blk)
		}
	}

	take := func(blk int) (fetchResult, bool) {
		pendingMu.Lock()
		ch, ok := pending[blk]
		pendingMu.Unlock()
		if !ok {
			return fetchResult{}, false
		}
		select {
		case res := <-ch:
			pendingMu.Lock()
			delete(pending, blk)
			pendingMu.Unlock()
			return res, true
		default:
			return fetchResult{}, false
		}
	}

	for !plan.AllDone() {
		reap()

		for outstandingCount() < maxOutstanding {
			blk := plan.GetBlockToPrefetch(cursor, idx)
			if blk < 0 {
				break
			}
			begin, end := plan.BlockRange(blk)
			launch(blk, begin, end)
		}

		blk := plan.GetBlockToRead(cursor, idx)
		if blk < 0 {
			if plan.AllDone() {
				break
			}
			if outstandingCount() == 0 {
				// Every block is either done or already contested beyond
				// stealThreshold without us; wait out the other workers.
				select {
				case <-clk.After(10 * time.Millisecond):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
			select {
			case <-wake:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		begin, end := plan.BlockRange(blk)
		res, ready := take(blk)
		for !ready {
			select {
			case <-wake:
			case <-ctx.Done():
				return ctx.Err()
			}
			res, ready = take(blk)
		}
		data, err := res.data, res.err
		if err != nil {
			return err
		}

		switch plan.MarkRead(blk) {
		case ReadReward:
			if maxOutstanding < maxOutstandingCeiling {
				maxOutstanding++
			}
			if mh != nil {
				mh.ExtremeSourceReward(ctx, 1, nil)
			}
			out.Push(BlockResult{Index: blk, Begin: begin, End: end, Data: data})
		case ReadNeutral:
			if mh != nil {
				mh.ExtremeBytesRead(ctx, int64(len(data)), nil)
			}
			out.Push(BlockResult{Index: blk, Begin: begin, End: end, Data: data})
		case ReadPenalty:
			maxOutstanding--
			if mh != nil {
				mh.ExtremeSourcePenalty(ctx, 1, nil)
			}
			if maxOutstanding <= 0 {
				select {
				case <-clk.After(time.Second):
				case <-ctx.Done():
					return ctx.Err()
				}
				maxOutstanding = 1
			}
		}
		cursor = (blk + 1) % plan.NumBlocks()
	}
	return nil
}
