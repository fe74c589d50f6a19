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

package engine

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrdnet/xrdnettest"
)

func TestPing_OK(t *testing.T) {
	srv, err := xrdnettest.Start(func(conn net.Conn) {
		acceptLogin(conn)
		h, _, err := xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqPing, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
	})
	require.NoError(t, err)
	defer srv.Close()

	mgr := testManager(t)
	host, port := hostPort(t, srv.Addr())
	ctx := context.Background()
	sess, err := NewSession(ctx, mgr, cfg.GetDefaultConfig(), clock.RealClock{}, noopMetrics{}, "alice", host, port)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Ping(ctx))
}
