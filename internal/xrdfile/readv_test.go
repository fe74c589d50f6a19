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

func serveReadV(t *testing.T) func(conn net.Conn) {
	return func(conn net.Conn) {
		acceptLogin(conn)

		h, _, err := xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqOpen, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, encodeHandle(3))

		h, body, err := xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqReadv, h.ReqCode)
		require.Len(t, decodeRequestChunks(t, body), 2)

		payload := wire.EncodeReadVRequest([]wire.ReadVChunk{{FileHandle: [4]byte{0, 0, 0, 3}, Length: 4, Offset: 0}})
		payload = append(payload, []byte("AAAA")...)
		chunk2 := wire.EncodeReadVRequest([]wire.ReadVChunk{{FileHandle: [4]byte{0, 0, 0, 3}, Length: 3, Offset: 100}})
		payload = append(payload, chunk2...)
		payload = append(payload, []byte("BBB")...)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, payload)

		h, _, err = xrdnettest.ReadRequest(conn)
		require.NoError(t, err)
		require.Equal(t, wire.ReqClose, h.ReqCode)
		xrdnettest.WriteResponse(conn, wire.ResponseHeader{Stream: h.Stream, Status: wire.StOK}, nil)
	}
}

// decodeRequestChunks decodes a readv request body, which is just
// back-to-back 16-byte chunk headers with no trailing data.
func decodeRequestChunks(t *testing.T, body []byte) []wire.ReadVChunk {
	t.Helper()
	const chunkLen = 16
	require.Equal(t, 0, len(body)%chunkLen)
	var out []wire.ReadVChunk
	for pos := 0; pos < len(body); pos += chunkLen {
		c, err := wire.DecodeReadVChunk(body[pos : pos+chunkLen])
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestFile_ReadVBatchesMissesIntoOneRequest(t *testing.T) {
	srv, err := xrdnettest.Start(serveReadV(t))
	require.NoError(t, err)
	defer srv.Close()

	host, port := hostPort(t, srv.Addr())
	mgr := testManager(t)
	c := cfg.GetDefaultConfig()
	ctx := context.Background()

	f, err := Open(ctx, mgr, c, clock.RealClock{}, noopMetrics{}, "alice",
		fmt.Sprintf("root://%s:%d/foo/bar", host, port), OpenOptions{}, false)
	require.NoError(t, err)

	buf1 := make([]byte, 4)
	buf2 := make([]byte, 3)
	err = f.ReadV(ctx, []Chunk{{Offset: 0, Buf: buf1}, {Offset: 100, Buf: buf2}})
	require.NoError(t, err)
	require.Equal(t, []byte("AAAA"), buf1)
	require.Equal(t, []byte("BBB"), buf2)

	require.NoError(t, f.Close(ctx))
}
