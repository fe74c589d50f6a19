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

// Package connmgr owns physical sockets to xrootd servers and the
// process-global table of logical connections multiplexed over them: the
// handshake, login/auth loop, per-stream demultiplexing reader task, and
// the 2-second TTL garbage collector.
package connmgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/inbox"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
)

// loginStreamID is reserved for the control-plane exchange (login, auth)
// that happens once per physical connection, before any user-visible
// logical connection has been allocated a stream-ID from the manager's
// global table. It is unregistered once login completes, freeing it for
// the global allocator to hand out like any other slot.
var loginStreamID = wire.StreamID{0, 0}

// loginState tracks a physical connection's progress through the
// handshake/login/auth sequence.
type loginState int

const (
	notLogged loginState = iota
	inProgress
	logged
)

// PhysConn is one TCP socket to a single (user, host, port) identity, shared
// by every logical connection the manager has handed out for that identity.
// xrootd's multi-stream bind would give that identity a small socket set
// instead of one; this build doesn't implement it, see DESIGN.md.
type PhysConn struct {
	key  string
	conn net.Conn

	writeMu sync.Mutex

	mu              sync.Mutex
	lastUse         time.Time
	trashedAt       time.Time
	ttl             time.Duration
	state           loginState
	kind            ServerKind
	protocolVersion int32
	logicalCount    int
	valid           bool
	paused          bool
	pauseWaiters    []chan struct{}
	nextHost        string
	nextPort        int32

	streamMu sync.Mutex
	streams  map[wire.StreamID]*inbox.Inbox

	clock clock.Clock
	tasks *syncutil.Bundle
}

func newPhysConn(key string, conn net.Conn, ttl time.Duration, c clock.Clock) *PhysConn {
	return &PhysConn{
		key:     key,
		conn:    conn,
		ttl:     ttl,
		valid:   true,
		streams: make(map[wire.StreamID]*inbox.Inbox),
		clock:   c,
		tasks:   syncutil.NewBundle(context.Background()),
	}
}

// startReader launches the reader task. Must be called exactly once, after
// a successful handshake.
func (pc *PhysConn) startReader() {
	pc.tasks.Add(func(ctx context.Context) error {
		pc.readLoop()
		return nil
	})
}

// wait blocks until the reader task this connection started has returned,
// which invalidate's socket close guarantees happens soon after it runs.
// gcTick calls this before a destroyed connection is dropped for good, so
// no reader goroutine outlives the PhysConn it belongs to.
func (pc *PhysConn) wait() {
	pc.tasks.Join()
}

func (pc *PhysConn) registerStream(id wire.StreamID, ib *inbox.Inbox) {
	pc.streamMu.Lock()
	defer pc.streamMu.Unlock()
	pc.streams[id] = ib
}

func (pc *PhysConn) unregisterStream(id wire.StreamID) {
	pc.streamMu.Lock()
	defer pc.streamMu.Unlock()
	delete(pc.streams, id)
}

func (pc *PhysConn) inboxFor(id wire.StreamID) (*inbox.Inbox, bool) {
	pc.streamMu.Lock()
	defer pc.streamMu.Unlock()
	ib, ok := pc.streams[id]
	return ib, ok
}

// touch records activity for TTL purposes. Called on every successful
// request/response exchange.
func (pc *PhysConn) touch() {
	pc.mu.Lock()
	pc.lastUse = pc.clock.Now()
	pc.mu.Unlock()
}

func (pc *PhysConn) isValid() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.valid
}

// invalidate marks the connection dead and wakes every pending Take with a
// synthetic socket_error, matching spec's "failure of any I/O marks the
// connection invalid; invalid connections cause pending takes to wake with
// socket_error".
func (pc *PhysConn) invalidate() {
	pc.mu.Lock()
	wasValid := pc.valid
	pc.valid = false
	pc.mu.Unlock()
	if !wasValid {
		return
	}
	pc.conn.Close()

	pc.streamMu.Lock()
	streams := make([]*inbox.Inbox, 0, len(pc.streams))
	for _, ib := range pc.streams {
		streams = append(streams, ib)
	}
	pc.streamMu.Unlock()
	for _, ib := range streams {
		ib.Close()
	}
}

// sendRequest writes a request frame under the physical connection's write
// lock. Writes are serialized per socket. Multi-stream bind (additional
// substreams, each with its own writer, routed by substream ID) is rejected
// at config-validation and connect time instead of being modeled here; see
// DESIGN.md for why.
func (pc *PhysConn) sendRequest(stream wire.StreamID, reqCode wire.RequestCode, params [16]byte, body []byte) error {
	if !pc.isValid() {
		return xrderr.New(xrderr.IOError, nil, "connmgr: write on invalid connection")
	}
	header := wire.RequestHeader{Stream: stream, ReqCode: reqCode, Params: params}
	frame := wire.EncodeRequest(header, body)

	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	if _, err := pc.conn.Write(frame); err != nil {
		pc.invalidate()
		return xrderr.New(xrderr.IOError, err, "connmgr: write request")
	}
	return nil
}

// roundTrip is a minimal single-request helper used by the login/auth
// sequence, which runs before any engine exists to drive the full
// redirect/wait/waitresp state machine: send the request, accumulate
// oksofar parts, and return the terminal status and payload.
func (pc *PhysConn) roundTrip(ctx context.Context, stream wire.StreamID, reqCode wire.RequestCode, body []byte) (wire.ResponseStatus, []byte, error) {
	ib := inbox.New(pc.clock)
	pc.registerStream(stream, ib)
	defer pc.unregisterStream(stream)

	if err := pc.sendRequest(stream, reqCode, [16]byte{}, body); err != nil {
		return 0, nil, err
	}

	deadline := pc.clock.Now().Add(requestTimeoutFromContext(ctx))
	var payload []byte
	for {
		msg := ib.Take(deadline)
		switch msg.Kind {
		case inbox.KindTimeout:
			return 0, nil, xrderr.New(xrderr.Timeout, nil, "connmgr: login/auth round trip timed out")
		case inbox.KindSocketError:
			return 0, nil, xrderr.New(xrderr.IOError, msg.Err, "connmgr: connection closed during login/auth")
		}
		payload = append(payload, msg.Payload...)
		if msg.Header.Status == wire.StOKSoFar {
			continue
		}
		pc.touch()
		return msg.Header.Status, payload, nil
	}
}

// requestTimeoutFromContext extracts the bound a caller attached to ctx via
// context.WithTimeout/WithDeadline, defaulting to a generous fixed bound for
// the one-shot login exchange if none was set.
func requestTimeoutFromContext(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

// readLoop is the reader task: it owns the socket's read side exclusively,
// demultiplexing every inbound frame onto the stream-ID's inbox, or to the
// unsolicited handler for attn frames.
func (pc *PhysConn) readLoop() {
	for {
		var hdrBuf [wire.ResponseHeaderLen]byte
		if _, err := readFull(pc.conn, hdrBuf[:]); err != nil {
			pc.invalidate()
			return
		}
		header, err := wire.DecodeResponseHeader(hdrBuf[:])
		if err != nil {
			pc.invalidate()
			return
		}
		var payload []byte
		if header.DataLen > 0 {
			payload = make([]byte, header.DataLen)
			if _, err := readFull(pc.conn, payload); err != nil {
				pc.invalidate()
				return
			}
		}

		if header.Status == wire.StAttn {
			pc.handleAttn(payload)
			continue
		}

		ib, ok := pc.inboxFor(header.Stream)
		if !ok {
			slog.Debug("connmgr: response for unknown stream-id dropped", "stream", fmt.Sprintf("%x", header.Stream))
			continue
		}
		ib.Put(inbox.Message{Kind: inbox.KindResponse, Header: header, Payload: payload})
	}
}

// handleAttn dispatches an unsolicited attention frame per spec §4.6.
func (pc *PhysConn) handleAttn(payload []byte) {
	info, err := wire.ParseAttn(payload)
	if err != nil {
		slog.Debug("connmgr: malformed attn frame dropped", "error", err)
		return
	}
	switch info.Action {
	case wire.AttnAsyncMsg:
		slog.Info("connmgr: server informational attn", "message", string(info.Body))
	case wire.AttnAsyncRedirect:
		rd, err := wire.ParseAsyncRedirect(info.Body)
		if err != nil {
			return
		}
		pc.mu.Lock()
		pc.nextHost, pc.nextPort = rd.Host, rd.Port
		pc.mu.Unlock()
	case wire.AttnAsyncDisc:
		// The requested delayed-reconnect window is informational for the
		// engine's fault handler; the physical connection itself just
		// records that a disconnect is coming and lets the next socket
		// error drive the actual reconnect.
		disc, err := wire.ParseAsyncDisc(info.Body)
		if err != nil {
			slog.Debug("connmgr: malformed asyncdi body dropped", "error", err)
			return
		}
		slog.Debug("connmgr: asyncdi received, disconnect expected", "seconds", disc.Seconds)
	case wire.AttnAsyncPause:
		pc.setPaused(true)
	case wire.AttnAsyncResume:
		pc.setPaused(false)
	case wire.AttnAsyncResponse:
		pc.deliverAsyncResponse(info.Body)
	}
}

func (pc *PhysConn) setPaused(paused bool) {
	pc.mu.Lock()
	pc.paused = paused
	waiters := pc.pauseWaiters
	if !paused {
		pc.pauseWaiters = nil
	}
	pc.mu.Unlock()
	if !paused {
		for _, w := range waiters {
			close(w)
		}
	}
}

// waitWhilePaused blocks the caller while asyncwt has gated writes on this
// connection, returning once asyncgo clears it.
func (pc *PhysConn) waitWhilePaused(ctx context.Context) error {
	for {
		pc.mu.Lock()
		if !pc.paused {
			pc.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		pc.pauseWaiters = append(pc.pauseWaiters, ch)
		pc.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// deliverAsyncResponse unpacks the real response header+body parked inside
// an asynresp attn body and delivers it to the waiter that registered a
// waitresp callback slot for that stream-ID.
func (pc *PhysConn) deliverAsyncResponse(body []byte) {
	if len(body) < wire.ResponseHeaderLen {
		return
	}
	header, err := wire.DecodeResponseHeader(body[:wire.ResponseHeaderLen])
	if err != nil {
		return
	}
	inner := body[wire.ResponseHeaderLen:]
	ib, ok := pc.inboxFor(header.Stream)
	if !ok {
		return
	}
	ib.Put(inbox.Message{Kind: inbox.KindResponse, Header: header, Payload: inner})
}
