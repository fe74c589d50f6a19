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

// Package engine implements the request/response state machine: write a
// request, read its (possibly multi-part) response, and drive the
// redirect/wait/waitresp/socket-error fault handler, all scoped to one
// Session that survives redirects and reconnects across its lifetime.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/connmgr"
	"github.com/xrootd-go/xrdcl/internal/inbox"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
	"github.com/xrootd-go/xrdcl/metrics"
)

// nonOpenRetryCap bounds how many times handle_fault will reissue a
// non-open request after a wait/socket-error before giving up with
// too_many_errors, per spec §4.6.
const nonOpenRetryCap = 15

// Request is one frame the engine can send and, on a transport-level
// reconnect, reissue. Reissue lets a caller (typically a file handle)
// refresh params that become stale across a reconnect, e.g. substituting a
// freshly minted server file handle.
type Request struct {
	Code   wire.RequestCode
	Params [16]byte
	Body   []byte
	IsOpen bool

	// Reissue, if set, is called instead of resending Params/Body verbatim
	// after the engine has reconnected to a (possibly new) server. It lets
	// the caller mint a fresh file handle or otherwise rebuild the request
	// before replay.
	Reissue func(ctx context.Context) (params [16]byte, body []byte, err error)
}

// Response is the accumulated, successful result of SendCommand.
type Response struct {
	Payload []byte
	// Started is true for a waitresp the caller chose not to block on;
	// Payload is empty and the caller should poll or register its own
	// completion path. The core's Session always blocks internally instead
	// (see handleWaitResp), so this is always false in practice today.
	Started bool
}

// Session is a logical connection that persists across redirects: it owns
// the connection manager's LogicalConn, remembers the load-balancer URL to
// rewind to, and tracks the rolling redirect count spec §4.6 bounds with
// max_redirects.
type Session struct {
	mgr     *connmgr.Manager
	cfg     *cfg.Config
	clock   clock.Clock
	metrics metrics.EngineMetricHandle
	user    string

	mu               sync.Mutex
	lc               *connmgr.LogicalConn
	host             string
	port             int
	lbHost           string
	lbPort           int
	haveLB           bool
	redirCount       int
	redirWindowStart time.Time
	internalToken    string
	lastServerError  error

	backoffLogSometimes rate.Sometimes
}

// NewSession builds a Session and performs the initial connect to
// host:port. user may be empty to default to the OS user.
func NewSession(ctx context.Context, mgr *connmgr.Manager, c *cfg.Config, clk clock.Clock, mh metrics.EngineMetricHandle, user, host string, port int) (*Session, error) {
	s := &Session{mgr: mgr, cfg: c, clock: clk, metrics: mh, user: user, host: host, port: port}
	lc, err := mgr.Connect(ctx, host, port, user)
	if err != nil {
		return nil, err
	}
	s.lc = lc
	return s, nil
}

// Close releases the session's logical connection. It does not send a wire
// close; any protocol-level close is the file handle's responsibility.
func (s *Session) Close() {
	s.mu.Lock()
	lc := s.lc
	s.mu.Unlock()
	if lc != nil {
		s.mgr.Release(lc)
	}
}

// Host and Port report the server the session is currently talking to,
// which may differ from where it started after a redirect.
func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *Session) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// InternalToken returns the opaque redirect token (if any) that must be
// sent as extra CGI on the next open/login against the current server.
func (s *Session) InternalToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internalToken
}

// LastServerError returns the most recently recorded server-side error,
// for callers (query cksum, etc.) that want the raw cause after SendCommand
// returns a generic error.
func (s *Session) LastServerError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastServerError
}

// SendCommand implements spec §4.6's send_command: write req, accumulate
// the possibly-multi-part response, and drive the fault handler on
// anything other than a clean ok.
func (s *Session) SendCommand(ctx context.Context, req Request) (Response, error) {
	retries := 0
	for {
		s.mu.Lock()
		lc := s.lc
		s.mu.Unlock()

		if err := lc.WriteRaw(ctx, req.Code, req.Params, req.Body); err != nil {
			resp, action, ferr := s.handleFault(ctx, req, nil, err)
			if action == faultReturnToCaller {
				return resp, ferr
			}
			retries++
			if !req.IsOpen && retries > nonOpenRetryCap {
				s.metrics.RequestErrorCount(ctx, 1, []metrics.MetricAttr{{Key: "reason", Value: "too_many_errors"}})
				return Response{}, xrderr.New(xrderr.TooManyErrors, nil, "engine: exceeded %d retries", nonOpenRetryCap)
			}
			continue
		}

		payload, status, faultPayload, recvErr := s.receiveLoop(ctx, lc)
		if recvErr != nil {
			resp, action, ferr := s.handleFault(ctx, req, nil, recvErr)
			if action == faultReturnToCaller {
				return resp, ferr
			}
			retries++
			if !req.IsOpen && retries > nonOpenRetryCap {
				s.metrics.RequestErrorCount(ctx, 1, []metrics.MetricAttr{{Key: "reason", Value: "too_many_errors"}})
				return Response{}, xrderr.New(xrderr.TooManyErrors, nil, "engine: exceeded %d retries", nonOpenRetryCap)
			}
			continue
		}
		if status == wire.StOK {
			s.metrics.RequestCount(ctx, 1, []metrics.MetricAttr{{Key: "outcome", Value: "ok"}})
			return Response{Payload: payload}, nil
		}

		resp, action, ferr := s.handleFault(ctx, req, faultPayload, faultStatusError{status: status})
		if action == faultReturnToCaller {
			return resp, ferr
		}
		if !req.IsOpen {
			retries++
			if retries > nonOpenRetryCap {
				s.metrics.RequestErrorCount(ctx, 1, []metrics.MetricAttr{{Key: "reason", Value: "too_many_errors"}})
				return Response{}, xrderr.New(xrderr.TooManyErrors, nil, "engine: exceeded %d retries", nonOpenRetryCap)
			}
		}
	}
}

// receiveLoop repeatedly takes frames for the session's stream, accumulating
// oksofar parts, until a terminal status arrives or a deadline/socket error
// interrupts it.
func (s *Session) receiveLoop(ctx context.Context, lc *connmgr.LogicalConn) (payload []byte, status wire.ResponseStatus, faultPayload []byte, err error) {
	deadline := s.requestDeadline(ctx)
	for {
		msg := lc.ReadMessage(deadline)
		switch msg.Kind {
		case inbox.KindTimeout:
			return nil, 0, nil, xrderr.New(xrderr.Timeout, nil, "engine: request timed out")
		case inbox.KindSocketError:
			return nil, 0, nil, xrderr.New(xrderr.IOError, msg.Err, "engine: connection lost mid-request")
		}
		if msg.Header.Status == wire.StOKSoFar {
			payload = append(payload, msg.Payload...)
			continue
		}
		payload = append(payload, msg.Payload...)
		return payload, msg.Header.Status, msg.Payload, nil
	}
}

func (s *Session) requestDeadline(ctx context.Context) time.Time {
	now := s.clock.Now()
	bound := now.Add(s.cfg.Connect.RequestTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(bound) {
		return dl
	}
	return bound
}

// faultStatusError wraps a non-ok, non-socket-error response status so
// handleFault can dispatch on it without a second return channel.
type faultStatusError struct {
	status wire.ResponseStatus
}

func (e faultStatusError) Error() string {
	return fmt.Sprintf("engine: server responded %s", e.status)
}
