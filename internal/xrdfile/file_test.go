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

package xrdfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/connmgr"
	"github.com/xrootd-go/xrdcl/internal/oracle"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
	"github.com/xrootd-go/xrdcl/internal/xrdnet/xrdnettest"
	"github.com/xrootd-go/xrdcl/metrics"
)

type noopMetrics struct{}

func (noopMetrics) ConnectCount(context.Context, int64, []metrics.MetricAttr)          {}
func (noopMetrics) ConnectLatency(context.Context, time.Duration, []metrics.MetricAttr) {}
func (noopMetrics) RedirectCount(context.Context, int64, []metrics.MetricAttr)         {}
func (noopMetrics) WaitCount(context.Context, int64, []metrics.MetricAttr)             {}
func (noopMetrics) WaitDuration(context.Context, time.Duration, []metrics.MetricAttr)  {}
func (noopMetrics) RequestCount(context.Context, int64, []metrics.MetricAttr)          {}
func (noopMetrics) RequestLatency(context.Context, time.Duration, []metrics.MetricAttr) {}
func (noopMetrics) RequestErrorCount(context.Context, int64, []metrics.MetricAttr)     {}
func (noopMetrics) CacheHitCount(context.Context, int64, []metrics.MetricAttr)         {}
func (noopMetrics) CacheMissCount(context.Context, int64, []metrics.MetricAttr)        {}
func (noopMetrics) CacheBytesServed(context.Context, int64, []metrics.MetricAttr)      {}
func (noopMetrics) CacheEvictionCount(context.Context, int64, []metrics.MetricAttr)    {}
func (noopMetrics) ExtremeBytesRead(context.Context, int64, []metrics.MetricAttr)      {}
func (noopMetrics) ExtremeSourceReward(context.Context, int64, []metrics.MetricAttr)   {}
func (noopMetrics) ExtremeSourcePenalty(context.Context, int64, []metrics.MetricAttr)  {}
func (noopMetrics) ExtremeSourceSteal(context.Context, int64, []metrics.MetricAttr)    {}

func testManager(t *testing.T) *connmgr.Manager {
	t.Helper()
	c := cfg.GetDefaultConfig()
	c.Connect.StartGCTask = false
	return connmgr.New(c, clock.RealClock{}, noopMetrics{}, oracle.NoAuthOracle{})
}

func acceptLogin(conn net.Conn) {
	h, _, err := xrdnettest.ReadRequest(conn)
	if err != nil {
		return
	}
	if h.ReqCode != wire.ReqLogin {
		return
	}
	xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
}

func encodeHandle(n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b[:]
}

// serveBasicFile plays the server side of open -> read -> write -> sync ->
// stat -> close against a single connection, in that order.
func serveBasicFile(t *testing.T, fileData []byte) func(conn net.Conn) {
	return func(conn net.Conn) {
		acceptLogin(conn)

		h, _, err := xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqOpen, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, encodeHandle(7))

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqRead, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, fileData)

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqWrite, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqSync, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqStat, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, []byte("7 1024 0 1700000000"))

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqClose, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
	}
}

func hostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestFile_OpenReadWriteSyncStatClose(t *testing.T) {
	fileData := []byte("hello-xrootd")
	srv, err := xrdnettest.Start(serveBasicFile(t, fileData))
	require.NoError(t, err)
	defer srv.Close()

	host, port := hostPort(t, srv.Addr())
	mgr := testManager(t)
	c := cfg.GetDefaultConfig()
	ctx := context.Background()

	f, err := Open(ctx, mgr, c, clock.RealClock{}, noopMetrics{}, "alice",
		fmt.Sprintf("root://%s:%d/foo/bar", host, port), OpenOptions{Write: true}, false)
	require.NoError(t, err)

	buf := make([]byte, len(fileData))
	n, err := f.Read(ctx, 0, buf)
	require.NoError(t, err)
	require.Equal(t, len(fileData), n)
	require.Equal(t, fileData, buf)

	require.NoError(t, f.Write(ctx, 100, []byte("new-bytes")))
	require.NoError(t, f.Sync(ctx))

	info, err := f.Stat(ctx, false)
	require.NoError(t, err)
	require.Equal(t, int64(1024), info.Size)
	require.Equal(t, "7", info.ID)

	require.NoError(t, f.Close(ctx))
}

func TestFile_OpenParallelBlocksUntilReady(t *testing.T) {
	fileData := []byte("abc")
	srv, err := xrdnettest.Start(serveBasicFile(t, fileData))
	require.NoError(t, err)
	defer srv.Close()

	host, port := hostPort(t, srv.Addr())
	mgr := testManager(t)
	c := cfg.GetDefaultConfig()
	ctx := context.Background()

	f, err := Open(ctx, mgr, c, clock.RealClock{}, noopMetrics{}, "alice",
		fmt.Sprintf("root://%s:%d/foo/bar", host, port), OpenOptions{Write: true}, true)
	require.NoError(t, err)

	buf := make([]byte, len(fileData))
	n, err := f.Read(ctx, 0, buf)
	require.NoError(t, err)
	require.Equal(t, len(fileData), n)

	require.NoError(t, f.Write(ctx, 100, []byte("x")))
	require.NoError(t, f.Sync(ctx))
	_, err = f.Stat(ctx, false)
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))
}

func TestFile_CloseThenReadReturnsNotOpen(t *testing.T) {
	fileData := []byte("z")
	srv, err := xrdnettest.Start(serveBasicFile(t, fileData))
	require.NoError(t, err)
	defer srv.Close()

	host, port := hostPort(t, srv.Addr())
	mgr := testManager(t)
	c := cfg.GetDefaultConfig()
	ctx := context.Background()

	f, err := Open(ctx, mgr, c, clock.RealClock{}, noopMetrics{}, "alice",
		fmt.Sprintf("root://%s:%d/foo/bar", host, port), OpenOptions{Write: true}, false)
	require.NoError(t, err)

	buf := make([]byte, len(fileData))
	_, err = f.Read(ctx, 0, buf)
	require.NoError(t, err)
	require.NoError(t, f.Write(ctx, 100, []byte("x")))
	require.NoError(t, f.Sync(ctx))
	_, err = f.Stat(ctx, false)
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))

	_, err = f.Read(ctx, 0, buf)
	require.ErrorIs(t, err, xrderr.NotOpen)
}
