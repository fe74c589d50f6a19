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

// Package inbox implements the per-logical-stream mailbox the physical
// connection's reader task delivers frames into, and the engine's
// send_command receive loop drains with a deadline.
package inbox

import (
	"errors"
	"sync"
	"time"

	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/common"
	"github.com/xrootd-go/xrdcl/internal/wire"
)

// MessageKind distinguishes a real wire response from the synthetic
// messages Take synthesizes on timeout or connection death.
type MessageKind int

const (
	KindResponse MessageKind = iota
	KindTimeout
	KindSocketError
)

// Message is what the reader task Puts and send_command Takes: either a
// decoded response header plus payload, or a synthetic timeout/error.
type Message struct {
	Kind    MessageKind
	Header  wire.ResponseHeader
	Payload []byte
	Err     error
}

// ErrClosed is the error attached to a KindSocketError message produced by
// a closed inbox.
var ErrClosed = errors.New("inbox: closed")

// Inbox is a FIFO mailbox for one stream-ID. Take blocks until a message
// arrives, the deadline passes (KindTimeout), or the inbox is closed
// (KindSocketError), matching spec's inbox.take(deadline) suspension point.
//
// notify is closed and replaced every time Put/Close changes state, which
// lets Take wait on it with a select alongside a deadline timer without
// needing condition-variable support for timed waits.
type Inbox struct {
	clock clock.Clock

	mu     sync.Mutex
	queue  common.Queue[Message]
	closed bool
	notify chan struct{}
}

func New(c clock.Clock) *Inbox {
	return &Inbox{clock: c, queue: common.NewLinkedListQueue[Message](), notify: make(chan struct{})}
}

// Put enqueues msg and wakes any waiter. Called only by the physical
// connection's reader task.
func (ib *Inbox) Put(msg Message) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.closed {
		return
	}
	ib.queue.Push(msg)
	ib.wake()
}

// wake must be called with ib.mu held.
func (ib *Inbox) wake() {
	close(ib.notify)
	ib.notify = make(chan struct{})
}

// Take blocks until a message is available, deadline elapses, or the inbox
// is closed, whichever comes first.
func (ib *Inbox) Take(deadline time.Time) Message {
	for {
		ib.mu.Lock()
		if ib.closed {
			ib.mu.Unlock()
			return Message{Kind: KindSocketError, Err: ErrClosed}
		}
		if !ib.queue.IsEmpty() {
			msg := ib.queue.Pop()
			ib.mu.Unlock()
			return msg
		}
		ch := ib.notify
		ib.mu.Unlock()

		remaining := deadline.Sub(ib.clock.Now())
		if remaining <= 0 {
			return Message{Kind: KindTimeout}
		}

		select {
		case <-ch:
			// state changed; loop and recheck.
		case <-ib.clock.After(remaining):
			return Message{Kind: KindTimeout}
		}
	}
}

// Count returns the number of queued messages.
func (ib *Inbox) Count() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.queue.Len()
}

// Drain removes and discards every queued message, used when a logical
// connection is torn down with responses still in flight.
func (ib *Inbox) Drain() {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	for !ib.queue.IsEmpty() {
		ib.queue.Pop()
	}
}

// Close marks the inbox closed: any blocked or future Take returns
// KindSocketError. Cooperative cancellation per spec §4.2.
func (ib *Inbox) Close() {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.closed {
		return
	}
	ib.closed = true
	ib.wake()
}
