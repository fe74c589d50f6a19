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
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrdnet/xrdnettest"
)

func serveQueryConfig(t *testing.T) func(conn net.Conn) {
	return func(conn net.Conn) {
		acceptLogin(conn)

		h, _, err := xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqOpen, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, encodeHandle(1))

		h, body, err := xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqQuery, h.ReqCode)
		require.Equal(t, "bind_max readv_ior_max", string(body))
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, []byte("bind_max 16\nreadv_ior_max 2097136\n"))

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqClose, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
	}
}

func TestFile_QueryConfigParsesNameValuePairs(t *testing.T) {
	srv, err := xrdnettest.Start(serveQueryConfig(t))
	require.NoError(t, err)
	defer srv.Close()

	host, port := hostPort(t, srv.Addr())
	mgr := testManager(t)
	c := cfg.GetDefaultConfig()
	ctx := context.Background()

	f, err := Open(ctx, mgr, c, clock.RealClock{}, noopMetrics{}, "alice",
		fmt.Sprintf("root://%s:%d/foo/bar", host, port), OpenOptions{}, false)
	require.NoError(t, err)

	cfgMap, err := f.QueryConfig(ctx, []string{"bind_max", "readv_ior_max"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"bind_max": "16", "readv_ior_max": "2097136"}, cfgMap)

	require.NoError(t, f.Close(ctx))
}
