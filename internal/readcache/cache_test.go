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

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xrootd-go/xrdcl/cfg"
)

func testConfig() *cfg.Config {
	c := cfg.GetDefaultConfig()
	c.ReadCache.SizeBytes = 0
	return c
}

func TestCache_SubmitThenGetHit(t *testing.T) {
	c := New(testConfig())
	c.Submit([]byte("hello world"), 0, 11)

	buf := make([]byte, 5)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 5, last)
	require.Equal(t, "hello", string(buf))
}

func TestCache_GetMissOnGap(t *testing.T) {
	c := New(testConfig())
	c.Submit([]byte("abc"), 10, 13)

	buf := make([]byte, 5)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 0, last, "offset 0 isn't covered by any item yet")
}

func TestCache_GetStopsAtPlaceholder(t *testing.T) {
	c := New(testConfig())
	c.Submit([]byte("abcdef"), 0, 6)
	c.PutPlaceholder(6, 12)

	buf := make([]byte, 12)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 6, last)
}

func TestCache_SubmitReplacesPlaceholder(t *testing.T) {
	c := New(testConfig())
	c.PutPlaceholder(0, 6)
	c.Submit([]byte("abcdef"), 0, 6)

	buf := make([]byte, 6)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 6, last)
	require.Equal(t, "abcdef", string(buf))
}

func TestCache_SubmitSplitsOverlappingData(t *testing.T) {
	c := New(testConfig())
	c.Submit([]byte("0123456789"), 0, 10)
	c.Submit([]byte("XY"), 4, 6)

	buf := make([]byte, 10)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 10, last)
	require.Equal(t, "0123XY6789", string(buf))
}

func TestCache_RemoveDropsCoverage(t *testing.T) {
	c := New(testConfig())
	c.Submit([]byte("abcdef"), 0, 6)
	c.Remove(0, 6)

	buf := make([]byte, 6)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 0, last)
}

func TestCache_MakeRoomEvictsLRUNotPlaceholders(t *testing.T) {
	conf := testConfig()
	conf.ReadCache.SizeBytes = 10
	conf.ReadCache.BlockRemPolicy = cfg.LRURemovalPolicy
	c := New(conf)

	c.Submit([]byte("0123456789"), 0, 10) // fills capacity exactly
	c.PutPlaceholder(100, 110)             // placeholders are free, never evicted

	// Touch nothing; inserting new data must evict the old data item, not
	// the placeholder.
	c.Submit([]byte("abcde"), 20, 25)

	buf := make([]byte, 10)
	last := c.Get(0, buf, true)
	require.EqualValues(t, 0, last, "original data item should have been evicted to make room")

	buf2 := make([]byte, 5)
	last2 := c.Get(20, buf2, true)
	require.EqualValues(t, 25, last2)
}

func TestPlanReadAhead_AlignsAndCaps(t *testing.T) {
	conf := testConfig()
	conf.ReadCache.ReadAheadSizeBytes = 1 << 20
	conf.ReadCache.BlockSizeBytes = 64 << 10

	plan, ok := PlanReadAhead(conf, 0, 4096, 0)
	require.True(t, ok)
	require.EqualValues(t, 4096, plan.Offset)
	require.True(t, plan.Length%int64(conf.ReadCache.BlockSizeBytes) == 0)
}

func TestPlanReadAhead_NothingLeftWhenAlreadyAheadOfWindow(t *testing.T) {
	conf := testConfig()
	conf.ReadCache.ReadAheadSizeBytes = 4096

	_, ok := PlanReadAhead(conf, 0, 4096, 1<<20)
	require.False(t, ok)
}
