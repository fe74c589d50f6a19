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
	"fmt"
	"net"

	"github.com/xrootd-go/xrdcl/internal/xrderr"
)

// ServerKind is the discriminator the handshake's extended body reports.
type ServerKind int32

const (
	ServerKindUnknown      ServerKind = 0
	ServerKindDataServer   ServerKind = 1
	ServerKindLoadBalancer ServerKind = 2
)

const (
	handshakeRequestLen    = 20
	handshakeProtocolHint  = 2012
	handshakeLegacyTypeRaw = 8
)

// handshakeResult is what a successful handshake establishes about the
// peer: the protocol version it negotiated and whether it's a data server
// or a load-balancing redirector.
type handshakeResult struct {
	ProtocolVersion int32
	Kind            ServerKind
}

// doHandshake runs the client side of the wire handshake: a fixed request
// announcing the protocol the client speaks, followed by a type
// discriminator from the server. A discriminator of 0 means an extended
// body follows with the negotiated version and server kind; a raw 8 means
// the peer is an unsupported legacy server.
func doHandshake(conn net.Conn) (handshakeResult, error) {
	req := make([]byte, handshakeRequestLen)
	binary.BigEndian.PutUint32(req[8:12], 4)
	binary.BigEndian.PutUint32(req[16:20], handshakeProtocolHint)
	if _, err := conn.Write(req); err != nil {
		return handshakeResult{}, xrderr.New(xrderr.IOError, err, "connmgr: write handshake request")
	}

	var discBuf [4]byte
	if _, err := readFull(conn, discBuf[:]); err != nil {
		return handshakeResult{}, xrderr.New(xrderr.IOError, err, "connmgr: read handshake discriminator")
	}
	disc := binary.BigEndian.Uint32(discBuf[:])
	if disc == handshakeLegacyTypeRaw {
		return handshakeResult{}, xrderr.New(xrderr.ProtocolUnsupported, nil, "connmgr: peer is an unsupported legacy rootd server")
	}
	if disc != 0 {
		return handshakeResult{}, xrderr.New(xrderr.ProtocolUnsupported, nil, "connmgr: unrecognized handshake discriminator %d", disc)
	}

	var body [12]byte
	if _, err := readFull(conn, body[:]); err != nil {
		return handshakeResult{}, xrderr.New(xrderr.IOError, err, "connmgr: read handshake extended body")
	}
	res := handshakeResult{
		ProtocolVersion: int32(binary.BigEndian.Uint32(body[0:4])),
		Kind:            ServerKind(binary.BigEndian.Uint32(body[4:8])),
	}
	if res.Kind != ServerKindDataServer && res.Kind != ServerKindLoadBalancer {
		return handshakeResult{}, xrderr.New(xrderr.ProtocolUnsupported, nil, "connmgr: unrecognized server kind %d", res.Kind)
	}
	return res, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("short read: got %d of %d bytes: %w", total, len(buf), err)
		}
	}
	return total, nil
}
