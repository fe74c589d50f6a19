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
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
)

func TestDoHandshake_DataServer(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, handshakeRequestLen)
		readFull(server, buf)
		resp := make([]byte, 16)
		binary.BigEndian.PutUint32(resp[4:8], 2012)
		binary.BigEndian.PutUint32(resp[8:12], uint32(ServerKindDataServer))
		server.Write(resp)
	}()

	res, err := doHandshake(client)
	require.NoError(t, err)
	assert.Equal(t, ServerKindDataServer, res.Kind)
	assert.Equal(t, int32(2012), res.ProtocolVersion)
}

func TestDoHandshake_LegacyServerRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, handshakeRequestLen)
		readFull(server, buf)
		resp := make([]byte, 4)
		binary.BigEndian.PutUint32(resp, handshakeLegacyTypeRaw)
		server.Write(resp)
	}()

	_, err := doHandshake(client)
	require.Error(t, err)
	assert.Equal(t, xrderr.ProtocolUnsupported, xrderr.KindOf(err))
}

func TestDoHandshake_UnknownServerKindRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, handshakeRequestLen)
		readFull(server, buf)
		resp := make([]byte, 16)
		binary.BigEndian.PutUint32(resp[4:8], 2012)
		binary.BigEndian.PutUint32(resp[8:12], 99)
		server.Write(resp)
	}()

	_, err := doHandshake(client)
	require.Error(t, err)
	assert.Equal(t, xrderr.ProtocolUnsupported, xrderr.KindOf(err))
}
