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
	"fmt"
	"log/slog"
	"time"

	"github.com/jacobsa/syncutil"
	"golang.org/x/time/rate"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/inbox"
	"github.com/xrootd-go/xrdcl/internal/oracle"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrdnet"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
	"github.com/xrootd-go/xrdcl/metrics"
)

// TTL defaults for the two server kinds a handshake can report. Not
// surfaced as config.Config knobs: spec.md's external-interface section
// doesn't enumerate data_ttl/lb_ttl as env keys, only as §3 data-model
// fields, so these stay implementation constants.
const (
	dataServerTTL   = 15 * time.Minute
	loadBalancerTTL = 3 * time.Minute

	// streamIDCap bounds the global logical-connection table, per spec's
	// "truncated to 16 bits (cap ≈ 32767)".
	streamIDCap = 32767

	gcInterval = 2 * time.Second
)

// Manager is the process-global connection manager: shared physical
// connections keyed by (user, host, port), and the single logical-
// connection table every stream-ID is an index into.
type Manager struct {
	cfg     *cfg.Config
	clock   clock.Clock
	metrics metrics.ConnMetricHandle
	auth    oracle.AuthOracle

	// mu guards every field below. It checks spec.md §8's logical/physical
	// table invariants on every Unlock, per checkInvariants.
	mu          syncutil.InvariantMutex
	physByKey   map[string]*PhysConn
	connecting  map[string]chan struct{}
	logicalTab  []*LogicalConn
	trash       []*PhysConn

	cancelGC context.CancelFunc
	tasks    *syncutil.Bundle

	gcLogSometimes rate.Sometimes
}

// New builds a Manager. auth is consulted only when a server's login
// response demands credentials; pass oracle.NoAuthOracle{} when none of the
// target servers require authentication.
func New(c *cfg.Config, clk clock.Clock, mh metrics.ConnMetricHandle, auth oracle.AuthOracle) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:            c,
		clock:          clk,
		metrics:        mh,
		auth:           auth,
		physByKey:      make(map[string]*PhysConn),
		connecting:     make(map[string]chan struct{}),
		cancelGC:       cancel,
		tasks:          syncutil.NewBundle(ctx),
		gcLogSometimes: rate.Sometimes{Interval: time.Minute},
	}
	m.mu = syncutil.NewInvariantMutex(m.checkInvariants)
	if c.Connect.StartGCTask {
		m.tasks.Add(m.gcLoop)
	} else {
		cancel()
	}
	return m
}

// checkInvariants holds spec.md §8's per-release table consistency check: a
// logicalTab slot, when occupied, must be keyed by its own stream-ID.
func (m *Manager) checkInvariants() {
	for idx, lc := range m.logicalTab {
		if lc == nil {
			continue
		}
		// INVARIANT: logicalTab[idx] == nil || decode(logicalTab[idx].streamID) == idx
		got := int(lc.streamID[0])<<8 | int(lc.streamID[1])
		if got != idx {
			panic(fmt.Sprintf("connmgr: logical connection at slot %d carries stream-ID decoding to %d", idx, got))
		}
	}
}

// Stop halts the garbage collector task and waits for it to exit. It does
// not close existing physical connections.
func (m *Manager) Stop() {
	m.cancelGC()
	m.tasks.Join()
}

// Connect implements spec §4.5's connect(url): share a live physical
// connection to (user, host, port) if one exists, serializing concurrent
// first-connects to the same endpoint, and always hands back a fresh
// logical connection with its own stream-ID.
func (m *Manager) Connect(ctx context.Context, host string, port int, user string) (*LogicalConn, error) {
	if user == "" {
		user = defaultUser()
	}
	key := fmt.Sprintf("%s@%s:%d", user, host, port)

	for {
		m.mu.Lock()
		if ch, ok := m.connecting[key]; ok {
			m.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if pc, ok := m.physByKey[key]; ok && pc.isValid() {
			pc.mu.Lock()
			pc.logicalCount++
			pc.mu.Unlock()
			lc, err := m.allocateLogicalConn(pc)
			m.mu.Unlock()
			return lc, err
		}

		ch := make(chan struct{})
		m.connecting[key] = ch
		m.mu.Unlock()

		lc, err := m.dialAndLogin(ctx, key, host, port, user, ch)

		m.mu.Lock()
		delete(m.connecting, key)
		m.mu.Unlock()
		close(ch)

		return lc, err
	}
}

// dialAndLogin performs the actual TCP connect, handshake, and login for a
// key this goroutine has exclusively claimed via m.connecting.
func (m *Manager) dialAndLogin(ctx context.Context, key, host string, port int, user string, claim chan struct{}) (*LogicalConn, error) {
	if !m.cfg.Connect.DomainAllowRe.Match(host) || m.cfg.Connect.DomainDenyRe.Match(host) {
		return nil, xrderr.New(xrderr.PermissionDenied, nil, "connmgr: %s blocked by connect domain allow/deny policy", host)
	}
	// cfg.ValidateConfig already rejects this at startup; re-checked here
	// because every physical connection this manager ever opens is single-
	// stream (see PhysConn's sendRequest doc comment and DESIGN.md).
	if cfg.IsMultistreamEnabled(m.cfg) {
		return nil, xrderr.New(xrderr.Unsupported, nil, "connmgr: multi-stream bind is not implemented in this build")
	}

	start := m.clock.Now()
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := xrdnet.Dial(ctx, addr, m.cfg.Connect.ConnectTimeout)
	if err != nil {
		m.metrics.ConnectCount(ctx, 1, []metrics.MetricAttr{{Key: "outcome", Value: "dial_error"}})
		return nil, xrderr.New(xrderr.HostUnreachable, err, "connmgr: dial %s", addr)
	}

	pc := newPhysConn(key, conn, dataServerTTL, m.clock)

	hres, err := doHandshake(conn)
	if err != nil {
		conn.Close()
		m.metrics.ConnectCount(ctx, 1, []metrics.MetricAttr{{Key: "outcome", Value: "handshake_error"}})
		return nil, err
	}
	pc.kind = hres.Kind
	pc.protocolVersion = hres.ProtocolVersion
	if pc.kind == ServerKindLoadBalancer {
		pc.ttl = loadBalancerTTL
	}

	pc.startReader()

	if err := doLogin(ctx, pc, loginStreamID, user, "", m.auth); err != nil {
		pc.invalidate()
		m.metrics.ConnectCount(ctx, 1, []metrics.MetricAttr{{Key: "outcome", Value: "login_error"}})
		return nil, err
	}
	pc.state = logged
	pc.touch()

	m.metrics.ConnectCount(ctx, 1, []metrics.MetricAttr{{Key: "outcome", Value: "ok"}})
	m.metrics.ConnectLatency(ctx, m.clock.Now().Sub(start), nil)

	m.mu.Lock()
	m.physByKey[key] = pc
	pc.logicalCount = 1
	lc, allocErr := m.allocateLogicalConn(pc)
	m.mu.Unlock()
	if allocErr != nil {
		pc.invalidate()
		return nil, allocErr
	}
	return lc, nil
}

// allocateLogicalConn assigns the next free global table slot to pc and
// returns a LogicalConn bound to it. Must be called with m.mu held.
func (m *Manager) allocateLogicalConn(pc *PhysConn) (*LogicalConn, error) {
	idx := -1
	for i, slot := range m.logicalTab {
		if slot == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		if len(m.logicalTab) >= streamIDCap {
			return nil, xrderr.New(xrderr.TooManyErrors, nil, "connmgr: logical connection table exhausted at %d entries", streamIDCap)
		}
		idx = len(m.logicalTab)
		m.logicalTab = append(m.logicalTab, nil)
	}

	var id wire.StreamID
	id[0] = byte(idx >> 8)
	id[1] = byte(idx)

	ib := inbox.New(m.clock)
	lc := &LogicalConn{phys: pc, streamID: id, inbox: ib}
	pc.registerStream(id, ib)
	m.logicalTab[idx] = lc
	return lc, nil
}

// Release detaches lc from the manager's global table and decrements its
// physical connection's logical-connection count, making the physical
// connection eligible for GC once its TTL next expires.
func (m *Manager) Release(lc *LogicalConn) {
	idx := int(lc.streamID[0])<<8 | int(lc.streamID[1])

	m.mu.Lock()
	if idx < len(m.logicalTab) && m.logicalTab[idx] == lc {
		m.logicalTab[idx] = nil
	}
	m.mu.Unlock()

	lc.Close()

	lc.phys.mu.Lock()
	lc.phys.logicalCount--
	lc.phys.mu.Unlock()
}

// gcLoop scans every gcInterval for idle, expired physical connections,
// moving them to a trash list on their first expiry and destroying them on
// the first pass after their TTL has elapsed again since being trashed,
// joining each destroyed connection's reader task before it's
// dropped for good. Its signature matches syncutil.Bundle's task shape; New
// adds it directly.
func (m *Manager) gcLoop(ctx context.Context) error {
	ticker := m.newGCTicker()
	defer ticker.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.c:
			m.gcTick()
		}
	}
}

func (m *Manager) gcTick() {
	now := m.clock.Now()

	m.mu.Lock()
	var toTrash, toDestroy []*PhysConn
	for key, pc := range m.physByKey {
		pc.mu.Lock()
		idle := pc.logicalCount == 0 && now.Sub(pc.lastUse) >= pc.ttl
		pc.mu.Unlock()
		if idle {
			delete(m.physByKey, key)
			pc.mu.Lock()
			pc.trashedAt = now
			pc.mu.Unlock()
			toTrash = append(toTrash, pc)
		}
	}
	remaining := m.trash[:0]
	for _, pc := range m.trash {
		pc.mu.Lock()
		ready := now.Sub(pc.trashedAt) >= pc.ttl
		pc.mu.Unlock()
		if ready {
			toDestroy = append(toDestroy, pc)
		} else {
			remaining = append(remaining, pc)
		}
	}
	m.trash = append(remaining, toTrash...)
	openCount := len(m.physByKey)
	m.mu.Unlock()

	for _, pc := range toTrash {
		pc.invalidate()
		slog.Debug("connmgr: physical connection idle past TTL, disconnected and trashed", "key", pc.key)
	}
	for _, pc := range toDestroy {
		pc.wait()
		slog.Debug("connmgr: destroyed trashed physical connection", "key", pc.key)
	}

	// A GC pass runs every few seconds for the life of the process; collapse
	// the routine "nothing expired" case to at most one line a minute so a
	// long-lived client doesn't flood logs with empty ticks.
	if len(toTrash) == 0 && len(toDestroy) == 0 {
		m.gcLogSometimes.Do(func() {
			slog.Debug("connmgr: gc tick, nothing expired", "open_physconns", openCount)
		})
	}
}

// gcTicker wraps clock.Clock.After in a repeating form; a *time.Ticker
// can't be driven by a fake clock, so the manager re-arms After itself.
type gcTicker struct {
	c    chan time.Time
	stop func()
}

func (m *Manager) newGCTicker() gcTicker {
	c := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case t := <-m.clock.After(gcInterval):
				select {
				case c <- t:
				case <-done:
					return
				}
			}
		}
	}()
	return gcTicker{c: c, stop: func() { close(done) }}
}

func defaultUser() string {
	if u, err := currentOSUser(); err == nil && u != "" {
		return u
	}
	return "anonymous"
}
