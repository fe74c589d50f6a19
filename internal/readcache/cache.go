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

// Package readcache implements the per-file-handle byte-range cache: a
// non-overlapping set of offset intervals, some holding real data, some
// placeholders reserving a range an async read is already in flight for.
// Eviction ordering is tracked with container/list, the standard library's
// idiomatic doubly linked list.
package readcache

import (
	"container/list"
	"sort"
	"sync"

	"github.com/xrootd-go/xrdcl/cfg"
)

// item is one entry in the cache's non-overlapping interval set.
type item struct {
	begin, end int64 // [begin, end)
	data       []byte // nil for a placeholder
	elem       *list.Element
}

func (it *item) isPlaceholder() bool { return it.data == nil }
func (it *item) length() int64       { return it.end - it.begin }

// Cache is one file handle's read cache, per spec §4.7.
type Cache struct {
	policy   cfg.CacheBlockRemovalPolicy
	capacity int64

	mu    sync.Mutex
	items []*item // sorted by begin, non-overlapping
	lru   *list.List
	size  int64
}

func New(c *cfg.Config) *Cache {
	return &Cache{
		policy:   c.ReadCache.BlockRemPolicy,
		capacity: int64(c.ReadCache.SizeBytes),
		lru:      list.New(),
	}
}

// indexAtOrAfter returns the index of the first item whose begin >= offset.
func (c *Cache) indexAtOrAfter(offset int64) int {
	return sort.Search(len(c.items), func(i int) bool { return c.items[i].begin >= offset })
}

// find returns the item covering offset, if any.
func (c *Cache) find(offset int64) *item {
	idx := c.indexAtOrAfter(offset + 1)
	if idx == 0 {
		return nil
	}
	it := c.items[idx-1]
	if it.begin <= offset && offset < it.end {
		return it
	}
	return nil
}

// Get implements get(offset, length, buffer): it copies bytes starting at
// offset into buf (up to len(buf)) across contiguous data items, stopping
// at the first gap, placeholder, or buffer end. It returns the offset one
// past the last byte successfully copied; if that equals offset, it was a
// miss. When touchLRU is set and the cache uses the LRU removal policy,
// every data item it traverses is marked as recently used.
func (c *Cache) Get(offset int64, buf []byte, touchLRU bool) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := offset + int64(len(buf))
	cur := offset
	for cur < want {
		it := c.find(cur)
		if it == nil || it.isPlaceholder() {
			break
		}
		n := it.end - cur
		if remain := want - cur; n > remain {
			n = remain
		}
		copy(buf[cur-offset:cur-offset+n], it.data[cur-it.begin:cur-it.begin+n])
		if touchLRU && c.policy == cfg.LRURemovalPolicy {
			c.lru.MoveToFront(it.elem)
		}
		cur += n
	}
	return cur
}

// Submit implements submit(buffer, offset_begin, offset_end): insert new
// data, replacing any placeholder and splitting/coalescing any overlapping
// data so the non-overlap invariant holds.
func (c *Cache) Submit(data []byte, begin, end int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.makeRoomLocked(end - begin)
	c.removeRangeLocked(begin, end)
	c.insertLocked(&item{begin: begin, end: end, data: data})
}

// PutPlaceholder implements put_placeholder(offset_begin, offset_end).
func (c *Cache) PutPlaceholder(begin, end int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeRangeLocked(begin, end)
	c.insertLocked(&item{begin: begin, end: end})
}

// Remove implements remove(offset_begin, offset_end): drop any covering
// items in the range, used after a hit so the same bytes aren't served
// twice by a subsequent read-ahead submit.
func (c *Cache) Remove(begin, end int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeRangeLocked(begin, end)
}

// insertLocked adds it to the sorted set and, for data items, the LRU
// list. Callers must have already cleared any overlap via
// removeRangeLocked.
func (c *Cache) insertLocked(it *item) {
	idx := c.indexAtOrAfter(it.begin)
	c.items = append(c.items, nil)
	copy(c.items[idx+1:], c.items[idx:])
	c.items[idx] = it
	if !it.isPlaceholder() {
		it.elem = c.lru.PushFront(it)
		c.size += it.length()
	}
}

// removeRangeLocked drops or truncates every item overlapping [begin, end),
// splitting a data item that only partially overlaps so the remainder
// outside the range survives.
func (c *Cache) removeRangeLocked(begin, end int64) {
	var kept []*item
	for _, it := range c.items {
		if it.end <= begin || it.begin >= end {
			kept = append(kept, it)
			continue
		}
		if it.begin < begin {
			kept = append(kept, c.truncated(it, it.begin, begin))
		}
		if it.end > end {
			kept = append(kept, c.truncated(it, end, it.end))
		}
		c.evictLocked(it)
	}
	c.items = kept
}

// truncated returns a new item covering [newBegin, newEnd) of it's range,
// re-slicing it's data if it's a data item and carrying it onto a fresh LRU
// entry; it does not touch it itself, which the caller evicts separately.
func (c *Cache) truncated(it *item, newBegin, newEnd int64) *item {
	out := &item{begin: newBegin, end: newEnd}
	if !it.isPlaceholder() {
		out.data = it.data[newBegin-it.begin : newEnd-it.begin]
		out.elem = c.lru.PushFront(out)
		c.size += out.length()
	}
	return out
}

// evictLocked drops it from the LRU list and size accounting. Must be
// called with c.mu held.
func (c *Cache) evictLocked(it *item) {
	if it.isPlaceholder() {
		return
	}
	c.lru.Remove(it.elem)
	c.size -= it.length()
}

// makeRoomLocked implements make_room(bytes): if adding bytes more would
// exceed cache_size_bytes, evict least-recently-used data items (never
// placeholders) until there's room, or nothing left to evict.
func (c *Cache) makeRoomLocked(bytes int64) {
	if c.capacity <= 0 {
		return
	}
	for c.size+bytes > c.capacity {
		e := c.lru.Back()
		if e == nil {
			return
		}
		victim := e.Value.(*item)
		c.lru.Remove(e)
		c.size -= victim.length()
		c.removeItemLocked(victim)
	}
}

func (c *Cache) removeItemLocked(victim *item) {
	for i, it := range c.items {
		if it == victim {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Size reports the current bytes held by data items (placeholders are
// free).
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
