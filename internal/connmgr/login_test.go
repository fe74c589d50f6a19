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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/oracle"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrdnet/xrdnettest"
)

type stubAuthOracle struct {
	calls int
}

func (o *stubAuthOracle) Authenticate(ctx context.Context, protocolList []byte) ([]byte, error) {
	o.calls++
	return []byte("cred-1"), nil
}

func (o *stubAuthOracle) Continue(ctx context.Context, replyBlob []byte) ([]byte, error) {
	o.calls++
	return []byte("cred-2"), nil
}

func newTestPhysConn(conn net.Conn) *PhysConn {
	pc := newPhysConn("test", conn, dataServerTTL, clock.RealClock{})
	pc.startReader()
	return pc
}

func TestDoLogin_NoAuthRequired(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		h, body, err := xrdnettest.ReadRequest(server)
		require.NoError(t, err)
		require.Equal(t, wire.ReqLogin, h.ReqCode)
		login, err := wire.DecodeLoginBody(body)
		require.NoError(t, err)
		require.Equal(t, "alice", login.Username)
		xrdnettest.WriteResponse(server, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
	}()

	pc := newTestPhysConn(client)
	err := doLogin(context.Background(), pc, loginStreamID, "alice", "", oracle.NoAuthOracle{})
	require.NoError(t, err)
}

func TestDoLogin_AuthLoopRunsToOK(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		h, _, err := xrdnettest.ReadRequest(server)
		require.NoError(t, err)
		require.Equal(t, wire.ReqLogin, h.ReqCode)
		xrdnettest.WriteResponse(server, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, []byte("unix"))

		h, body, err := xrdnettest.ReadRequest(server)
		require.NoError(t, err)
		require.Equal(t, wire.ReqAuth, h.ReqCode)
		require.Equal(t, "cred-1", string(body))
		xrdnettest.WriteResponse(server, wire.ResponseHeader{Stream: h.Stream, Status: wire.StAuthmore}, []byte("challenge"))

		h, body, err = xrdnettest.ReadRequest(server)
		require.NoError(t, err)
		require.Equal(t, "cred-2", string(body))
		xrdnettest.WriteResponse(server, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
	}()

	pc := newTestPhysConn(client)
	auth := &stubAuthOracle{}
	err := doLogin(context.Background(), pc, loginStreamID, "alice", "", auth)
	require.NoError(t, err)
	require.Equal(t, 2, auth.calls)
}

func TestDoLogin_ServerRejectsLogin(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		h, _, err := xrdnettest.ReadRequest(server)
		require.NoError(t, err)
		body := make([]byte, 4)
		body = append(body, "not authorized"...)
		xrdnettest.WriteResponse(server, wire.ResponseHeader{Stream: h.Stream, Status: wire.StError}, body)
	}()

	pc := newTestPhysConn(client)
	err := doLogin(context.Background(), pc, loginStreamID, "alice", "", oracle.NoAuthOracle{})
	require.Error(t, err)
}
