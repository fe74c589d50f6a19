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

// Package xrdnettest provides a scriptable fake xrootd server for testing
// internal/connmgr and internal/engine without a real data server.
package xrdnettest

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/xrootd-go/xrdcl/internal/wire"
)

// Handler is invoked once per accepted connection, after the handshake
// handshake bytes have already been drained by the server. It should read
// requests with ReadRequest and reply with WriteResponse.
type Handler func(conn net.Conn)

// Server is a single-process fake xrootd listener.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup
}

// Start begins listening on an ephemeral loopback port and dispatches each
// accepted connection to handler after performing the server side of the
// initial handshake automatically.
func Start(handler Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("xrdnettest: listen: %w", err)
	}
	s := &Server{ln: ln}
	s.wg.Add(1)
	go s.serve(handler)
	return s, nil
}

func (s *Server) serve(handler Handler) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			if err := ServeHandshake(conn, ServerKindDataServer); err != nil {
				return
			}
			handler(conn)
		}()
	}
}

// Addr returns the host:port the server is listening on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Wait blocks until the accept loop has exited (after Close).
func (s *Server) Wait() {
	s.wg.Wait()
}

// ServerKind mirrors the discriminator internal/connmgr's handshake parses.
type ServerKind int32

const (
	ServerKindDataServer  ServerKind = 1
	ServerKindLoadBalancer ServerKind = 2
)

// ServeHandshake reads the client's initial handshake bytes and replies
// with an extended handshake response declaring kind.
func ServeHandshake(conn net.Conn, kind ServerKind) error {
	req := make([]byte, 20)
	if _, err := readFull(conn, req); err != nil {
		return fmt.Errorf("xrdnettest: read handshake: %w", err)
	}

	resp := make([]byte, 16)
	binary.BigEndian.PutUint32(resp[0:4], 0) // type discriminator: extended body follows
	binary.BigEndian.PutUint32(resp[4:8], 2012)
	binary.BigEndian.PutUint32(resp[8:12], uint32(kind))
	binary.BigEndian.PutUint32(resp[12:16], 0)
	_, err := conn.Write(resp)
	return err
}

// ReadRequest reads one request frame: the 24-byte header plus its body.
func ReadRequest(conn net.Conn) (wire.RequestHeader, []byte, error) {
	hdr := make([]byte, wire.RequestHeaderLen)
	if _, err := readFull(conn, hdr); err != nil {
		return wire.RequestHeader{}, nil, err
	}
	h, err := wire.DecodeRequestHeader(hdr)
	if err != nil {
		return wire.RequestHeader{}, nil, err
	}
	body := make([]byte, h.DataLen)
	if h.DataLen > 0 {
		if _, err := readFull(conn, body); err != nil {
			return h, nil, err
		}
	}
	return h, body, nil
}

// WriteResponse writes one response frame: the 8-byte header plus payload.
// header.DataLen is overwritten to len(payload).
func WriteResponse(conn net.Conn, header wire.ResponseHeader, payload []byte) error {
	header.DataLen = uint32(len(payload))
	buf := append(wire.EncodeResponseHeader(header), payload...)
	_, err := conn.Write(buf)
	return err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
