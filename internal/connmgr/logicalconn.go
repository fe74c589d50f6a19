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

package connmgr

import (
	"context"
	"time"

	"github.com/xrootd-go/xrdcl/internal/inbox"
	"github.com/xrootd-go/xrdcl/internal/wire"
)

// LogicalConn is a thin wrapper around one physical connection plus a
// stream-ID unique within it. It multiplexes incoming frames for that
// stream via its own Inbox; destroying it releases the stream-ID for
// reuse but sends no wire close — that is the engine's job.
type LogicalConn struct {
	phys     *PhysConn
	streamID wire.StreamID
	inbox    *inbox.Inbox
}

// StreamID returns the wire-level stream-ID this logical connection reads
// and writes under.
func (lc *LogicalConn) StreamID() wire.StreamID {
	return lc.streamID
}

// Valid reports whether the underlying physical connection is still usable.
func (lc *LogicalConn) Valid() bool {
	return lc.phys.isValid()
}

// WriteRaw sends one request frame, waiting out any asyncwt pause gate
// first.
func (lc *LogicalConn) WriteRaw(ctx context.Context, reqCode wire.RequestCode, params [16]byte, body []byte) error {
	if err := lc.phys.waitWhilePaused(ctx); err != nil {
		return err
	}
	return lc.phys.sendRequest(lc.streamID, reqCode, params, body)
}

// ReadMessage is inbox.take(deadline): block for the next frame addressed
// to this stream, a timeout, or a socket error.
func (lc *LogicalConn) ReadMessage(deadline time.Time) inbox.Message {
	return lc.inbox.Take(deadline)
}

// NextDestination returns the host/port an asyncrd attn most recently set
// on the underlying physical connection, if any.
func (lc *LogicalConn) NextDestination() (host string, port int32, ok bool) {
	lc.phys.mu.Lock()
	defer lc.phys.mu.Unlock()
	if lc.phys.nextHost == "" {
		return "", 0, false
	}
	return lc.phys.nextHost, lc.phys.nextPort, true
}

// Close releases the stream-ID and detaches this logical connection from
// its physical connection's demux table. It does not touch the socket.
func (lc *LogicalConn) Close() {
	lc.phys.unregisterStream(lc.streamID)
	lc.inbox.Drain()
}
