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

package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/wire"
)

func TestInbox_PutThenTakeReturnsImmediately(t *testing.T) {
	c := clock.NewSimulatedClock(time.Unix(0, 0))
	ib := New(c)

	ib.Put(Message{Kind: KindResponse, Header: wire.ResponseHeader{Status: wire.StOK}})

	msg := ib.Take(c.Now().Add(time.Second))
	assert.Equal(t, KindResponse, msg.Kind)
	assert.Equal(t, wire.StOK, msg.Header.Status)
}

func TestInbox_FIFOOrdering(t *testing.T) {
	c := clock.NewSimulatedClock(time.Unix(0, 0))
	ib := New(c)

	ib.Put(Message{Header: wire.ResponseHeader{DataLen: 1}})
	ib.Put(Message{Header: wire.ResponseHeader{DataLen: 2}})

	first := ib.Take(c.Now().Add(time.Second))
	second := ib.Take(c.Now().Add(time.Second))
	assert.Equal(t, uint32(1), first.Header.DataLen)
	assert.Equal(t, uint32(2), second.Header.DataLen)
}

func TestInbox_TakeTimesOutAtDeadline(t *testing.T) {
	c := clock.NewSimulatedClock(time.Unix(0, 0))
	ib := New(c)
	deadline := c.Now().Add(5 * time.Second)

	done := make(chan Message, 1)
	go func() { done <- ib.Take(deadline) }()

	time.Sleep(10 * time.Millisecond) // let the goroutine reach the select
	c.AdvanceTime(6 * time.Second)

	select {
	case msg := <-done:
		assert.Equal(t, KindTimeout, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after deadline")
	}
}

func TestInbox_CloseWakesBlockedTake(t *testing.T) {
	c := clock.NewSimulatedClock(time.Unix(0, 0))
	ib := New(c)
	deadline := c.Now().Add(time.Hour)

	done := make(chan Message, 1)
	go func() { done <- ib.Take(deadline) }()

	time.Sleep(10 * time.Millisecond)
	ib.Close()

	select {
	case msg := <-done:
		assert.Equal(t, KindSocketError, msg.Kind)
		assert.ErrorIs(t, msg.Err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after Close")
	}
}

func TestInbox_PutAfterCloseIsDiscarded(t *testing.T) {
	c := clock.NewSimulatedClock(time.Unix(0, 0))
	ib := New(c)
	ib.Close()

	ib.Put(Message{Header: wire.ResponseHeader{DataLen: 9}})

	require.Equal(t, 0, ib.Count())
}

func TestInbox_Drain(t *testing.T) {
	c := clock.NewSimulatedClock(time.Unix(0, 0))
	ib := New(c)
	ib.Put(Message{})
	ib.Put(Message{})

	ib.Drain()

	assert.Equal(t, 0, ib.Count())
}
